package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "kotae",
		"model":   s.engine.Model(),
		"endpoints": []string{
			"GET /health", "GET /stats", "GET /history",
			"POST /add_document", "POST /query", "POST /batch_query", "POST /get_context",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Database().Stats()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  stats,
		"model":     s.engine.Model(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records := s.engine.History(limit)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(records),
		"history": records,
	})
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req models.AddDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add documents request", zap.Int("count", len(req.Documents)))
	resp, err := s.engine.AddDocuments(r.Context(), &req)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question))
	resp, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatchQuery(w http.ResponseWriter, r *http.Request) {
	var req models.BatchQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("batch query request", zap.Int("count", len(req.Queries)))
	resp, err := s.engine.BatchQuery(r.Context(), &req)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	var req models.GetContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("get context request", zap.String("query", req.Query))
	resp, err := s.engine.Context(r.Context(), &req)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondForError maps engine errors onto HTTP statuses. Validation and index
// configuration problems are client errors; upstream model failures are 502;
// everything else is a 500.
func (s *Server) respondForError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		s.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": verr.Details,
		})
		return
	}
	if errors.Is(err, vector.ErrUnsupportedIndexType) || errors.Is(err, vector.ErrDimensionMismatch) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var merr *models.ExternalModelError
	if errors.As(err, &merr) {
		s.logger.Error("external model failed", zap.String("op", merr.Op), zap.Error(merr.Err))
		s.respondError(w, http.StatusBadGateway, merr.Error())
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
