// Package api provides the HTTP API for analyzing and comparing rest
// sequences and browsing archived runs.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/ratelimit"
	"github.com/listenupapp/restalign/internal/sse"
	"github.com/listenupapp/restalign/internal/store"
	"github.com/listenupapp/restalign/internal/validation"
)

// Options configures optional server behavior.
type Options struct {
	// Version is reported in the OpenAPI document.
	Version string
	// CORSOrigins lists allowed origins. Empty disables CORS handling.
	CORSOrigins []string
	// Limiter throttles requests per client IP. Nil disables rate limiting.
	Limiter *ratelimit.KeyedRateLimiter
	// Events receives run notifications and serves /api/v1/events. Nil
	// disables the stream.
	Events *sse.Manager
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	runner    *pipeline.Runner
	runs      store.RunStore // nil disables archiving and the /runs routes
	limiter   *ratelimit.KeyedRateLimiter
	events    *sse.Manager
	validator *validation.Validator
	router    *chi.Mux
	api       huma.API
	logger    *logger.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(runner *pipeline.Runner, runs store.RunStore, log *logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		runner:    runner,
		runs:      runs,
		limiter:   opts.Limiter,
		events:    opts.Events,
		validator: validation.New(),
		router:    chi.NewRouter(),
		logger:    log,
	}

	// chi requires middleware before any route, and humachi registers the
	// OpenAPI routes on creation.
	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("restalign API", opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	if len(opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}

// registerRoutes configures all HTTP routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAnalyzeRoutes()
	if s.runs != nil {
		s.registerRunRoutes()
	}
	if s.events != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.events, s.logger.Logger).ServeHTTP)
	}
}

// emit forwards an event to stream subscribers, if any.
func (s *Server) emit(event sse.Event) {
	if s.events != nil {
		s.events.Emit(event)
	}
}
