// Package server assembles the HTTP surface: routes, middleware chain, and
// the WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/metrics"
	"github.com/arbilo/arbilod/internal/server/handler"
	"github.com/arbilo/arbilod/internal/server/middleware"
	"github.com/arbilo/arbilod/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	JWTSecret       string // if empty, authentication is disabled
	RateLimit       int    // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain applied: CORS, then logging, then rate limiting, then
// auth. Health and metrics sit outside the auth and rate-limit layers.
// limiter may be nil when no Redis backend is configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	// Protected API routes.
	api := http.NewServeMux()
	api.HandleFunc("GET /api/opportunities/tracker", handlers.Opportunities.Tracker)
	api.HandleFunc("GET /api/opportunities/pairwise", handlers.Opportunities.Pairwise)
	api.HandleFunc("GET /api/opportunities/pairwise/{investment}", handlers.Opportunities.Pairwise)
	api.HandleFunc("GET /api/opportunities/triangular", handlers.Opportunities.Triangular)

	var protected http.Handler = api
	protected = middleware.Auth(cfg.JWTSecret)(protected)
	protected = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(protected)

	mux := http.NewServeMux()
	mux.Handle("/api/opportunities/", protected)

	// Health check and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// WebSocket endpoint; the hub does its own handshake authentication.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
