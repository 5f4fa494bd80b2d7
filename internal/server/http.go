// Package server exposes the HTTP API: query processing, ingestion,
// history, security detection, and statistics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/intellecta/rag/internal/auth"
)

// Config holds configuration for the HTTP server
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string // CORS allowed origins
	Auth           *auth.Middleware
}

// Server wraps an HTTP server around the API handlers
type Server struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger
}

// New creates a new HTTP server and mounts all routes
func New(cfg Config, h *Handlers) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))
	if cfg.Auth != nil {
		router.Use(cfg.Auth.Handler)
	}

	router.Get("/healthz", healthCheckHandler())
	router.Get("/health", h.Health)
	router.Get("/status", h.Status)
	router.Get("/config", h.SystemConfig)

	router.Post("/query", h.Query)
	router.Get("/query/history", h.QueryHistory)
	router.Delete("/query/history", h.ClearQueryHistory)
	router.Delete("/query/history/{entry_id}", h.DeleteQueryHistoryEntry)
	router.Get("/query/metrics", h.QueryMetrics)
	router.Get("/query/stats", h.QueryStats)

	router.Post("/ingest", h.Ingest)
	router.Post("/ingest/batch", h.IngestBatch)
	router.Get("/documents", h.ListDocuments)
	router.Delete("/documents/{doc_id}", h.DeleteDocument)

	router.Post("/security/auto-detect", h.AutoDetectSecurity)
	router.Get("/audit", h.AuditLog)

	router.Get("/stats", h.Stats)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // quality-mode queries run two passes plus generation
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: server,
		router: router,
		logger: logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying chi router for additional route registration
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz liveness endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}
