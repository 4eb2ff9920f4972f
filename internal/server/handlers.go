package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/rag"
	"go.uber.org/zap"
)

const (
	defaultDialogLimit = 50
	maxDialogLimit     = 500
)

type retrieveRequest struct {
	models.QueryRequest
	Context bool `json:"context"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.engine.DefaultK()); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("answer request", zap.String("query", req.Query), zap.Int("k", req.K))
	// Failures are reported in the answer itself; the request still succeeds.
	s.respondJSON(w, http.StatusOK, s.service.Ask(r.Context(), &req, "http"))
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.engine.DefaultK()); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.Int("k", req.K))
	response, err := s.engine.RetrieveRequest(r.Context(), &req.QueryRequest)
	if err != nil {
		s.logger.Error("retrieve failed",
			zap.String("query", req.Query),
			zap.String("error_kind", models.ErrorKind(err)),
			zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrEmbedding) {
			status = http.StatusBadGateway
		}
		s.respondError(w, status, "retrieval failed")
		return
	}
	if req.Context {
		response.Context = rag.Assemble(response.Results)
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := CollectStatus(r.Context(), s.config, s.engine.Index(), s.engine.DefaultK(), s.dialogs)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleDialogs(w http.ResponseWriter, r *http.Request) {
	if s.dialogs == nil {
		s.respondError(w, http.StatusNotImplemented, "dialog log not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultDialogLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxDialogLimit {
		limit = maxDialogLimit
	}
	dialogs, err := s.dialogs.ListDialogs(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list dialogs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dialogs == nil {
		dialogs = []*models.DialogRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"dialogs": dialogs,
		"offset":  offset,
		"limit":   limit,
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
