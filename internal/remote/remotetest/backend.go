// Package remotetest provides an in-memory implementation of the livestream
// backend's REST surface for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"livestream-console/internal/overlay"
	"livestream-console/internal/remote"

	"github.com/go-chi/chi/v5"
)

// HLSPath is where the fake backend serves converted RTSP streams.
const HLSPath = "/static/streams/stream.m3u8"

// Backend is a fake backend. Operations named in Fail answer success:false.
type Backend struct {
	mu         sync.Mutex
	settings   remote.Settings
	overlays   []overlay.Overlay
	nextID     int
	fail       map[string]bool
	requestIDs []string
	origin     *Origin
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{fail: make(map[string]bool), origin: NewOrigin(DefaultWindow)}
}

// Server starts an httptest server for b. Callers close it.
func (b *Backend) Server() *httptest.Server {
	return httptest.NewServer(b.Router())
}

// Router returns the backend's routes.
func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.recordRequestID)
	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", b.getSettings)
		r.Post("/settings", b.saveSettings)
		r.Get("/overlays", b.listOverlays)
		r.Post("/overlays", b.createOverlay)
		r.Put("/overlays/{id}", b.updateOverlay)
		r.Delete("/overlays/{id}", b.deleteOverlay)
		r.Post("/stream", b.negotiate)
	})
	r.Method(http.MethodGet, HLSPath, b.origin)
	return r
}

// Origin returns the live HLS playlist served at HLSPath.
func (b *Backend) Origin() *Origin {
	return b.origin
}

// Fail makes op ("settings", "list", "create", "update", "delete", "stream") fail or succeed.
func (b *Backend) Fail(op string, fail bool) {
	b.mu.Lock()
	b.fail[op] = fail
	b.mu.Unlock()
}

// Seed appends overlays as if they had been created earlier.
func (b *Backend) Seed(items ...overlay.Overlay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range items {
		if o.ID == "" {
			o.ID = b.newIDLocked()
		}
		b.overlays = append(b.overlays, o)
	}
}

// Overlays returns the stored overlays.
func (b *Backend) Overlays() []overlay.Overlay {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]overlay.Overlay(nil), b.overlays...)
}

// Settings returns the stored settings.
func (b *Backend) Settings() remote.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

// RequestIDs returns the X-Request-ID of every request served so far.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

func (b *Backend) recordRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requestIDs = append(b.requestIDs, r.Header.Get(remote.RequestIDHeader))
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) failing(op string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fail[op]
}

func (b *Backend) newIDLocked() overlay.ID {
	b.nextID++
	return overlay.ID(fmt.Sprintf("%024x", b.nextID))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func (b *Backend) getSettings(w http.ResponseWriter, r *http.Request) {
	if b.failing("settings") {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeData(w, http.StatusOK, b.Settings())
}

func (b *Backend) saveSettings(w http.ResponseWriter, r *http.Request) {
	if b.failing("settings") {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	var s remote.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.mu.Lock()
	b.settings = s
	b.mu.Unlock()
	writeData(w, http.StatusOK, s)
}

func (b *Backend) listOverlays(w http.ResponseWriter, r *http.Request) {
	if b.failing("list") {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	writeData(w, http.StatusOK, b.Overlays())
}

func (b *Backend) createOverlay(w http.ResponseWriter, r *http.Request) {
	if b.failing("create") {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	var d overlay.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if d.Name == "" || d.Type == "" || d.Content == "" {
		writeError(w, http.StatusBadRequest, "Missing required field")
		return
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05.000000")
	b.mu.Lock()
	o := overlay.Overlay{
		ID: b.newIDLocked(), Name: d.Name, Type: d.Type, Content: d.Content,
		Position: d.Position, Size: d.Size, Style: d.Style, Visible: d.Visible,
		CreatedAt: now, UpdatedAt: now,
	}
	b.overlays = append(b.overlays, o)
	b.mu.Unlock()
	writeData(w, http.StatusCreated, o)
}

func (b *Backend) updateOverlay(w http.ResponseWriter, r *http.Request) {
	if b.failing("update") {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	id := overlay.ID(chi.URLParam(r, "id"))
	var p overlay.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.overlays {
		if o.ID == id {
			o = p.Apply(o)
			o.UpdatedAt = time.Now().UTC().Format("2006-01-02T15:04:05.000000")
			b.overlays[i] = o
			writeData(w, http.StatusOK, o)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Overlay not found")
}

func (b *Backend) deleteOverlay(w http.ResponseWriter, r *http.Request) {
	if b.failing("delete") {
		writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	id := overlay.ID(chi.URLParam(r, "id"))

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.overlays {
		if o.ID == id {
			b.overlays = append(b.overlays[:i:i], b.overlays[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Overlay deleted successfully"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Overlay not found")
}

// negotiate answers hls for RTSP and HLS sources, direct for other HTTP media.
func (b *Backend) negotiate(w http.ResponseWriter, r *http.Request) {
	if b.failing("stream") {
		writeError(w, http.StatusInternalServerError, "ffmpeg failed to start")
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	resp := map[string]any{"success": true}
	switch {
	case strings.HasPrefix(body.URL, "rtsp://"):
		resp["type"], resp["stream_url"] = "hls", HLSPath
	case strings.HasSuffix(body.URL, ".m3u8"):
		resp["type"], resp["stream_url"] = "hls", body.URL
	case strings.HasPrefix(body.URL, "http://"), strings.HasPrefix(body.URL, "https://"):
		resp["type"], resp["stream_url"] = "direct", body.URL
	default:
		writeError(w, http.StatusBadRequest, "unsupported stream url")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
