// Package server provides the HTTP API for tana.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/tana/internal/config"
	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/pkg/utils"
)

// Retriever is the retrieval API the server exposes.
type Retriever interface {
	AddDocuments(ctx context.Context, workspaceID string, texts []string, metadata []map[string]any) ([]int, error)
	Search(ctx context.Context, workspaceID, query string, k int) ([]*models.SearchResult, error)
	Stats(ctx context.Context, workspaceID string) (*models.WorkspaceStats, error)
}

// Server is the HTTP server for the tana API.
type Server struct {
	retriever Retriever
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(retriever Retriever, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		retriever: retriever,
		config:    cfg,
		logger:    utils.LoggerOrNop(logger),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/workspaces/{workspaceID}", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Post("/documents", s.handleAddDocuments)
		r.Post("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
