// Package api provides the HTTP API for the Rewire streak engine.
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

	"github.com/rewireapp/rewire-server/internal/ratelimit"
	"github.com/rewireapp/rewire-server/internal/sse"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins      []string
	RateLimitPerMin  int
	RateLimitBurst   int
	EnableTestRoutes bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services    *Services
	health      HealthChecks
	router      *chi.Mux
	api         huma.API
	sseManager  *sse.Manager
	sseHandler  *sse.Handler
	rateLimiter *ratelimit.KeyedRateLimiter
	opts        Options
	logger      *slog.Logger
}

// NewServer creates the router, registers every route and returns the server.
func NewServer(services *Services, health HealthChecks, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:   services,
		health:     health,
		router:     router,
		sseManager: sseManager,
		opts:       opts,
		logger:     logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}
	if opts.RateLimitPerMin > 0 {
		s.rateLimiter = ratelimit.PerMinute(opts.RateLimitPerMin, max(opts.RateLimitBurst, 1))
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Rewire API", Version)
	humaConfig.Info.Description = "Streak, session and achievement engine for the Rewire app"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerStreakRoutes()
	s.registerEpisodeRoutes()
	s.registerProfileRoutes()
	s.registerAchievementRoutes()
	if opts.EnableTestRoutes {
		s.registerTestRoutes()
	}
	s.registerEventRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	if s.rateLimiter != nil {
		s.router.Use(RateLimitMiddleware(s.rateLimiter, s.logger))
	}
}

func (s *Server) registerEventRoutes() {
	if s.sseHandler == nil {
		return
	}
	// SSE streams are long-lived and bypass huma.
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
}
