package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/hl7lens/internal/config"
	"github.com/dgallion1/hl7lens/internal/metrics"
	"github.com/dgallion1/hl7lens/internal/session"
	"github.com/dgallion1/hl7lens/internal/store"
)

// Server is the HTTP API server for hl7lens.
type Server struct {
	router   chi.Router
	engine   *session.Engine
	sessions *session.Store
	messages store.Store
	metrics  *metrics.Registry
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(engine *session.Engine, sessions *session.Store, messages store.Store, reg *metrics.Registry, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		messages: messages,
		metrics:  reg,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/parse", s.handleParse)
		r.Post("/api/map", s.handleMap)
		r.Post("/api/tree", s.handleTree)

		r.Get("/api/definitions", s.handleVersions)
		r.Get("/api/definitions/{version}/{segment}", s.handleSegmentDefinition)
		r.Get("/api/definitions/{version}/{segment}/{field}", s.handleFieldDefinition)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Delete("/{sessionID}", s.handleDeleteSession)
			r.Put("/{sessionID}/message", s.handleReplaceMessage)
			r.Get("/{sessionID}/selection", s.handleGetSelection)
			r.Put("/{sessionID}/selection", s.handleSetSelection)
			r.Get("/{sessionID}/ws", s.handleWebsocket)
		})

		r.Get("/api/messages", s.handleListMessages)
		r.Post("/api/messages", s.handleSaveMessage)
		r.Post("/api/messages/extract", s.handleExtract)

		r.Get("/api/stats/parse", s.handleParseStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
