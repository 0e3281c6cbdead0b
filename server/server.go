// Package server provides HTTP server management and lifecycle handling for
// the coverage API. It includes server setup, middleware configuration, route
// management, and graceful shutdown with proper error handling and logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rxcheck/coverage-api/config"
	"github.com/rxcheck/coverage-api/handlers"
	"github.com/rxcheck/coverage-api/interfaces"
	"github.com/rxcheck/coverage-api/logging"
	"github.com/rxcheck/coverage-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server     *http.Server
	router     chi.Router
	checker    handlers.CoverageChecker
	researcher interfaces.Researcher
	store      interfaces.FormularyStore
	config     *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, checker handlers.CoverageChecker, researcher interfaces.Researcher, store interfaces.FormularyStore) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:     router,
		checker:    checker,
		researcher: researcher,
		store:      store,
		config:     cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.DefaultLoggingService.Logger))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Post("/coverage/check", handlers.CheckCoverage(s.checker))
	s.router.Post("/coverage/research", handlers.Research(s.researcher))
	s.router.Get("/health", handlers.HealthCheck(s.store))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}
