package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gmelton/docsight/internal/config"
	"github.com/gmelton/docsight/internal/pipeline"
	"github.com/gmelton/docsight/internal/query"
)

// Server is the HTTP API server for docsight.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	engine       *query.Engine
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, engine *query.Engine, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		engine:       engine,
		log:          log,
		cfg:          cfg,
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

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/query", s.handleQuery)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
