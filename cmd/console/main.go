package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livestream-console/internal/console"
	"livestream-console/internal/overlay"
	"livestream-console/internal/platform/config"
	"livestream-console/internal/platform/logger"
	"livestream-console/internal/platform/metrics"
	"livestream-console/internal/remote"
	"livestream-console/internal/stream"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 15 * time.Second
	remoteTimeout   = 30 * time.Second
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		log.Warn("presets not loaded, using defaults", "file", cfg.PresetsFile, "error", err)
		presets = config.DefaultPresets()
	}

	httpClient := &http.Client{Timeout: remoteTimeout}
	client, err := remote.New(cfg.APIBaseURL, httpClient, logger.Component(log, "remote"))
	if err != nil {
		log.Error("invalid API_BASE_URL", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	store := overlay.NewStore(client, logger.Component(log, "overlays"), met)
	decoders := stream.NewHLSFactory(stream.HLSConfig{
		Client:       httpClient,
		Log:          logger.Component(log, "hls"),
		PollInterval: cfg.HLSPollInterval,
	})
	element := stream.NewElement(cfg.HLSBufferedLimit)
	session := stream.NewSession(client, decoders, element, logger.Component(log, "stream"), met)

	c := console.New(store, session, client, logger.Component(log, "console"), met)
	hub := console.NewHub(c.Snapshot, logger.Component(log, "ws"), met)
	c.OnChange(hub.Broadcast)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	if err := c.Start(startCtx); err != nil {
		log.Warn("console started with errors", "error", err)
	}
	cancelStart()

	h := console.NewHandler(c, hub, presets, log, met)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: h.Router()}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"presets", len(presets),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		c.Close()
		os.Exit(1)
	}
	c.Close()

	log.Info("server stopped")
}
