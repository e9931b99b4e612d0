package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Services are the application services the API exposes.
type Services struct {
	Ingestion   driving.IngestionService
	Retrieval   driving.RetrievalService
	Query       driving.QueryService
	Maintenance driving.MaintenanceService
	Tasks       driven.TaskQueue // Optional: enables async endpoints and task lookup

	// Checks are pinged in parallel by /ready, keyed by name
	Checks map[string]Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	ingestion   driving.IngestionService
	retrieval   driving.RetrievalService
	query       driving.QueryService
	maintenance driving.MaintenanceService
	tasks       driven.TaskQueue
	checks      map[string]Pinger

	maxBodyBytes int64
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
	// MaxBodyBytes bounds request bodies; larger requests get 413
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// DefaultMaxBodyBytes bounds request bodies when Config sets no limit
const DefaultMaxBodyBytes = 128 << 20

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		Version:      "dev",
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		logger:       logger.With("component", "http"),
		ingestion:    svc.Ingestion,
		retrieval:    svc.Retrieval,
		query:        svc.Query,
		maintenance:  svc.Maintenance,
		tasks:        svc.Tasks,
		checks:       svc.Checks,
		maxBodyBytes: maxBody,
	}
	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewBodyLimitMiddleware(maxBody).Handler(handler)
	handler = NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	handler = NewLoggingMiddleware(s.logger).Handler(handler)
	handler = NewRecoveryMiddleware(s.logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous ingestion and rebuilds can be slow
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Documents
	s.router.HandleFunc("POST /api/v1/documents", s.handleIngest)
	s.router.HandleFunc("POST /api/v1/documents/async", s.handleIngestAsync)
	s.router.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)
	s.router.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	s.router.HandleFunc("GET /api/v1/documents/{id}/chunks", s.handleGetDocumentChunks)

	// Retrieval
	s.router.HandleFunc("POST /api/v1/retrieve", s.handleRetrieve)
	s.router.HandleFunc("POST /api/v1/query", s.handleQuery)

	// Maintenance
	s.router.HandleFunc("POST /api/v1/maintenance/deduplicate", s.handleDeduplicate)
	s.router.HandleFunc("POST /api/v1/maintenance/compact", s.handleCompact)
	s.router.HandleFunc("POST /api/v1/maintenance/rebuild", s.handleRebuild)
	s.router.HandleFunc("GET /api/v1/maintenance/status", s.handleMaintenanceStatus)

	// Cache
	s.router.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	s.router.HandleFunc("DELETE /api/v1/cache", s.handleClearCache)

	// Tasks
	s.router.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
