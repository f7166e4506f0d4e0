// Package api exposes deck generation over HTTP: a small REST surface for
// starting runs and browsing results, plus a server-sent-events stream of
// pipeline progress.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/deckhand-ai/deckhand/internal/events"
	"github.com/deckhand-ai/deckhand/internal/logging"
	"github.com/deckhand-ai/deckhand/internal/orchestrator"
	"github.com/deckhand-ai/deckhand/internal/router"
	"github.com/deckhand-ai/deckhand/internal/store"
)

// Server wires the pipeline and stores into an HTTP handler.
type Server struct {
	router      chi.Router
	pipeline    *orchestrator.Orchestrator
	models      *router.Registry
	policies    *router.PolicyTable
	artifacts   *store.ArtifactStore
	history     *store.HistoryStore
	bus         *events.Bus
	logger      *logging.Logger
	corsOrigins []string
	genTimeout  time.Duration
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithGenerationTimeout bounds one synchronous generation request.
func WithGenerationTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.genTimeout = d }
}

// NewServer creates the API server.
func NewServer(
	pipeline *orchestrator.Orchestrator,
	models *router.Registry,
	policies *router.PolicyTable,
	artifacts *store.ArtifactStore,
	history *store.HistoryStore,
	bus *events.Bus,
	opts ...ServerOption,
) *Server {
	s := &Server{
		pipeline:    pipeline,
		models:      models,
		policies:    policies,
		artifacts:   artifacts,
		history:     history,
		bus:         bus,
		logger:      logging.NewNop(),
		corsOrigins: []string{"*"},
		genTimeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.handleListDecks)
			r.Post("/", s.handleGenerateDeck)
			r.Route("/{deckID}", func(r chi.Router) {
				r.Get("/", s.handleGetDeck)
				r.Delete("/", s.handleDeleteDeck)
			})
		})
		r.Get("/models", s.handleListModels)
		r.Get("/policies", s.handleListPolicies)
		r.Get("/events", s.handleSSE)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
