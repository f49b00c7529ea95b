// Package server provides the HTTP server and routing for Cornerstone.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/cornerstone/internal/config"
	"github.com/aristath/cornerstone/internal/di"
	analysishandlers "github.com/aristath/cornerstone/internal/modules/analysis/handlers"
	markethandlers "github.com/aristath/cornerstone/internal/modules/market/handlers"
	propertieshandlers "github.com/aristath/cornerstone/internal/modules/properties/handlers"
	scoringhandlers "github.com/aristath/cornerstone/internal/modules/scoring/handlers"
)

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	AllowedOrigins []string         // CORS and websocket origins; empty means config.DefaultAllowedOrigins
	Container      *di.Container    // DI container with all services
	Jobs           *di.JobInstances // Jobs exposed for manual triggering, may be nil
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	allowedOrigins []string
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	var runner JobRunner
	if cfg.Container.Scheduler != nil {
		runner = cfg.Container.Scheduler
	}
	systemHandlers := NewSystemHandlers(cfg.Container.Dataset, cfg.Container.RateLimits, runner, cfg.Log)
	systemHandlers.SetJobs(cfg.Jobs.All()...)
	systemHandlers.SetCacheBackend(cacheBackend(cfg.Container))

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	if len(s.allowedOrigins) == 0 {
		s.allowedOrigins = config.DefaultAllowedOrigins
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// cacheBackend names the store the di container wired for source responses
func cacheBackend(c *di.Container) string {
	switch {
	case c.RedisCache != nil:
		return "redis"
	case c.ClientDataRepo != nil:
		return "sqlite"
	case c.MemoryCache != nil:
		return "memory"
	}
	return ""
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.systemHandlers.HandleHealth)

	// Prometheus scrape endpoint
	if c.Metrics != nil {
		s.router.Handle("/metrics", c.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Properties: stored records, ranking and dataset lifecycle
		propertiesHandlers := propertieshandlers.NewHandlers(c.PropertyRepo, c.Dataset, c.AnalysisService, c.Metrics, s.log)
		propertiesHandlers.RegisterRoutes(r)

		// Scoring: stateless single-record analysis
		scoringHandlers := scoringhandlers.NewHandlers(c.Costs, s.log)
		scoringHandlers.RegisterRoutes(r)

		// Analysis: batch scoring and the comprehensive report
		analysisHandlers := analysishandlers.NewHandlers(c.AnalysisService, s.log)
		analysisHandlers.RegisterRoutes(r)

		// Economic and market data, plus the event stream under /market
		var listings markethandlers.ListingSource
		if c.Listings != nil {
			listings = c.Listings
		}
		var stream http.Handler
		if c.EventBus != nil {
			stream = NewEventsStreamHandler(c.EventBus, s.allowedOrigins, s.log)
		}
		marketHandlers := markethandlers.NewHandlers(c.FRED, c.MarketIndex, c.NYCOpenData, listings, stream, s.log)
		marketHandlers.RegisterRoutes(r)

		// System routes
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)     // Host, dataset and rate limit status
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob) // Run a background job now
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
