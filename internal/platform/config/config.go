package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the console's runtime configuration.
type Config struct {
	Port             string
	APIBaseURL       string
	LogLevel         string
	LogFormat        string
	PresetsFile      string
	HLSPollInterval  time.Duration
	HLSBufferedLimit int
}

// Load reads .env files into the environment. A missing file is reported but
// callers usually ignore it and fall back to the process environment. With no
// paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment, applying defaults.
func FromEnv() Config {
	return Config{
		Port:             GetEnv("PORT", "8090"),
		APIBaseURL:       GetEnv("API_BASE_URL", "http://localhost:5000"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "json"),
		PresetsFile:      GetEnv("PRESETS_FILE", "presets.yaml"),
		HLSPollInterval:  time.Duration(GetEnvInt("HLS_POLL_INTERVAL_MS", 0)) * time.Millisecond,
		HLSBufferedLimit: GetEnvInt("HLS_BUFFER_SEGMENTS", 10),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if it is unset or malformed.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
