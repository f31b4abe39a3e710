package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory    = "memory"
	BackendPathstore = "pathstore"
	BackendSQLite    = "sqlite"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Saved messages
	StoreBackend    string
	PathstoreURL    string
	PathstoreAPIKey string
	SQLitePath      string

	// Definitions
	OverlayPath    string
	DefaultVersion string

	// Parser
	DeriveDelimiters bool

	// Upload limits
	MaxUploadBytes int64

	// Sessions
	SessionTTL      time.Duration
	MaxSessions     int
	CleanupInterval time.Duration

	// Parse latency window
	StatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("HL7LENS_API_KEY"),

		StoreBackend:    strings.ToLower(envOr("STORE_BACKEND", BackendMemory)),
		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		SQLitePath:      envOr("SQLITE_PATH", "hl7lens.db"),

		OverlayPath:    os.Getenv("OVERLAY_PATH"),
		DefaultVersion: envOr("DEFAULT_VERSION", "2.5.1"),

		DeriveDelimiters: envBool("DERIVE_DELIMITERS", true),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		SessionTTL:      envDuration("SESSION_TTL", 1*time.Hour),
		MaxSessions:     envInt("MAX_SESSIONS", 1000),
		CleanupInterval: envDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("HL7LENS_API_KEY is required")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
