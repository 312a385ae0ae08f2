package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nickbooth1/airport-capacity-planner/internal/confirmation"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

type queryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	ContextID string `json:"context_id,omitempty"`
	Query     string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	// REST callers may omit the session; reuse the user's active session or
	// start one so pending operations stay confirmable.
	if req.SessionID == "" {
		if sess, err := s.sessions.ForUser(req.UserID); err == nil {
			req.SessionID = sess.ID
		} else {
			req.SessionID = s.sessions.Create(req.UserID, req.ContextID).ID
		}
	}

	turn, err := s.agent.HandleQuery(r.Context(), req.UserID, req.SessionID, req.ContextID, req.Query)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			respondError(w, http.StatusNotFound, "context_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "turn_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"context_id": turn.ContextID,
		"session_id": req.SessionID,
		"response":   turn.Response,
		"proposal":   turn.Proposal,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	limit := intQuery(r, "limit", 20)

	contexts, err := s.store.ListContexts(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"contexts": contexts})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cc, err := s.store.GetContext(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "context_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cc)
}

type actionRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleApproveAction(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "id")
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.agent.Confirm(r.Context(), req.SessionID, operationID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRejectAction(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "id")
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.agent.Reject(r.Context(), req.SessionID, operationID, req.Reason)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleActionStatus(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "id")
	op, err := s.agent.OperationStatus(operationID)
	if err != nil {
		respondError(w, http.StatusNotFound, "operation_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, op)
}

func respondActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, confirmation.ErrNotFound):
		respondError(w, http.StatusNotFound, "operation_not_found", err.Error())
	case errors.Is(err, confirmation.ErrSessionMismatch):
		respondError(w, http.StatusForbidden, "session_mismatch", err.Error())
	case errors.Is(err, confirmation.ErrAlreadyResolved):
		respondError(w, http.StatusConflict, "operation_already_resolved", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "action_failed", err.Error())
	}
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
