// Package api provides the HTTP API of the contribution gateway.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	services       *Services
	backends       *Backends
	sseHandler     *sse.Handler
	router         *chi.Mux
	api            huma.API
	logger         *slog.Logger
	sessionLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, services *Services, backends *Backends, sseHandler *sse.Handler, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:       services,
		backends:       backends,
		sseHandler:     sseHandler,
		router:         router,
		logger:         logger,
		sessionLimiter: NewRateLimiter(cfg.Limits.SessionPerMinute, time.Minute, max(int(cfg.Limits.SessionPerMinute), 1)),
	}

	s.setupMiddleware(cfg.Server.AllowedOrigins)

	humaConfig := huma.DefaultConfig("Open Supply Hub Contribute API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"session": {
			Type: "apiKey",
			In:   "header",
			Name: SessionTokenHeader,
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown releases the server's background resources.
func (s *Server) Shutdown() {
	s.sessionLimiter.Stop()
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", SessionTokenHeader, StaffTokenHeader},
			ExposedHeaders:   []string{"Location", SessionTokenHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// registerRoutes registers every operation.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerSearchRoutes()
	s.registerContributeRoutes()
	s.registerTrackerRoutes()
	s.registerFilterRoutes()
	s.registerDashboardRoutes()

	// The event stream is a long-lived response and bypasses huma.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/stream", s.sseHandler.ServeHTTP)
	}
}
