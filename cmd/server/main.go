package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/hl7lens/internal/api"
	"github.com/dgallion1/hl7lens/internal/config"
	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/metrics"
	"github.com/dgallion1/hl7lens/internal/parser"
	"github.com/dgallion1/hl7lens/internal/pathstore"
	"github.com/dgallion1/hl7lens/internal/session"
	"github.com/dgallion1/hl7lens/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Definitions and parsing.
	defs, err := definition.Load(cfg.OverlayPath,
		definition.WithDefaultVersion(cfg.DefaultVersion),
		definition.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to load definitions", "error", err)
		os.Exit(1)
	}
	reg := metrics.New(cfg.StatsWindow)
	engine := session.NewEngine(parser.New(parser.Options{DeriveDelimiters: cfg.DeriveDelimiters}), defs, reg)

	// Sessions.
	sessions := session.NewStore(engine, cfg.SessionTTL, cfg.MaxSessions, log)
	go sessions.Run(ctx, cfg.CleanupInterval)

	// Saved messages.
	messages, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to open message store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	if n, err := store.Seed(ctx, messages); err != nil {
		log.Warn("failed to seed sample messages", "error", err)
	} else if n > 0 {
		log.Info("seeded sample messages", "count", n)
	}

	// Initialize HTTP server.
	srv := api.NewServer(engine, sessions, messages, reg, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: websocket observers hold their connection open.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		messages.Close()
	}()

	log.Info("starting hl7lens",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"default_version", defs.DefaultVersion(),
		"versions", len(defs.Versions()),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendPathstore:
		return store.NewPathstore(pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)), nil
	case config.BackendSQLite:
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
