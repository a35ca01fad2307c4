package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tana/internal/embedding"
	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/internal/retrieval"
	"github.com/hyperjump/tana/internal/store"
)

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req models.AddDocumentsRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Metadata may be omitted entirely; otherwise it must line up with texts.
	if req.Metadata == nil {
		req.Metadata = make([]map[string]any, len(req.Texts))
	}
	s.logger.Debug("add documents request", zap.String("workspace", workspaceID), zap.Int("count", len(req.Texts)))

	ids, err := s.retriever.AddDocuments(r.Context(), workspaceID, req.Texts, req.Metadata)
	if err != nil {
		s.fail(w, "add documents failed", workspaceID, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.AddDocumentsResponse{WorkspaceID: workspaceID, IDs: ids})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("workspace", workspaceID), zap.String("query", query.Query), zap.Int("k", query.K))

	start := time.Now()
	results, err := s.retriever.Search(r.Context(), workspaceID, query.Query, query.K)
	if err != nil {
		s.fail(w, "search failed", workspaceID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		WorkspaceID: workspaceID,
		Query:       query.Query,
		Results:     results,
		QueryTime:   time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	stats, err := s.retriever.Stats(r.Context(), workspaceID)
	if err != nil {
		s.fail(w, "stats failed", workspaceID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps retrieval errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidWorkspaceID),
		errors.Is(err, retrieval.ErrLengthMismatch),
		errors.Is(err, retrieval.ErrInvalidMetadata),
		errors.Is(err, retrieval.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, embedding.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg, workspaceID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.String("workspace", workspaceID), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("workspace", workspaceID), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
