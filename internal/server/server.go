// Package server exposes the attention markets HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/server/handler"
	"github.com/attnmarkets/attnd/internal/server/middleware"
	"github.com/attnmarkets/attnd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, admin endpoints are open
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Events   *handler.EventHandler
	Trades   *handler.TradeHandler
	Comments *handler.CommentHandler
	History  *handler.HistoryHandler
	Profiles *handler.ProfileHandler
}

// Server is the HTTP + WebSocket API server for the attention markets engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Admin routes require the configured token; public write endpoints pass
// through the rate limiter. The limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	admin := middleware.Auth(cfg.AdminToken)
	limited := func(next http.Handler) http.Handler { return next }
	if limiter != nil && cfg.RateLimit > 0 {
		limited = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)
	}

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Event endpoints.
	mux.Handle("POST /api/events", limited(http.HandlerFunc(handlers.Events.Propose)))
	mux.HandleFunc("GET /api/events", handlers.Events.List)
	mux.HandleFunc("POST /api/events/suggest-window", handlers.Events.SuggestWindow)
	mux.HandleFunc("GET /api/events/{id}", handlers.Events.Get)
	mux.HandleFunc("GET /api/events/{id}/image", handlers.Events.Image)

	// Admin endpoints.
	mux.Handle("POST /api/events/{id}/resolve", admin(http.HandlerFunc(handlers.Events.Resolve)))
	mux.Handle("DELETE /api/events/{id}", admin(http.HandlerFunc(handlers.Events.Delete)))

	// Trade endpoints.
	mux.Handle("POST /api/events/{id}/trades", limited(http.HandlerFunc(handlers.Trades.Record)))

	// Comment endpoints.
	mux.HandleFunc("GET /api/events/{id}/comments", handlers.Comments.List)
	mux.Handle("POST /api/events/{id}/comments", limited(http.HandlerFunc(handlers.Comments.Add)))

	// History endpoint.
	mux.HandleFunc("GET /api/events/{id}/history", handlers.History.Get)

	// Profile endpoints.
	mux.HandleFunc("GET /api/profile", handlers.Profiles.Get)
	mux.HandleFunc("GET /api/profile/trades", handlers.Profiles.Trades)
	mux.HandleFunc("PUT /api/profile/display-name", handlers.Profiles.SetDisplayName)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
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
