package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nickbooth1/airport-capacity-planner/internal/learning"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

const insightTag = "insight"

type feedbackRequest struct {
	UserID       string         `json:"user_id"`
	TargetType   string         `json:"target_type"`
	TargetID     string         `json:"target_id"`
	Rating       *int           `json:"rating,omitempty"`
	Interaction  string         `json:"interaction,omitempty"`
	FeedbackText string         `json:"feedback_text,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// handleFeedback accepts both explicit ratings and implicit interaction
// signals; the presence of a rating decides which path runs.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var (
		rec    memory.FeedbackRecord
		err    error
		source string
	)
	if req.Rating != nil {
		source = "explicit"
		rec, err = s.engine.ProcessExplicit(r.Context(), learning.ExplicitFeedback{
			UserID:       req.UserID,
			TargetType:   req.TargetType,
			TargetID:     req.TargetID,
			Rating:       *req.Rating,
			FeedbackText: req.FeedbackText,
			Metadata:     req.Metadata,
		})
	} else {
		source = "implicit"
		rec, err = s.engine.ProcessImplicit(r.Context(), learning.ImplicitFeedback{
			UserID:     req.UserID,
			TargetType: req.TargetType,
			TargetID:   req.TargetID,
			Type:       req.Interaction,
			Metadata:   req.Metadata,
		})
	}
	if err != nil {
		if errors.Is(err, learning.ErrInvalidFeedback) {
			respondError(w, http.StatusBadRequest, "invalid_feedback", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "feedback_failed", err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.FeedbackReceived.WithLabelValues(source, rec.TargetType).Inc()
	}
	respondJSON(w, http.StatusCreated, rec)
}

type insightRequest struct {
	UserID     string   `json:"user_id"`
	ContextID  string   `json:"context_id,omitempty"`
	Content    string   `json:"content"`
	Importance int      `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func (s *Server) handleSaveInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id and content are required")
		return
	}

	item, err := s.store.CreateMemory(r.Context(), memory.Item{
		UserID:     req.UserID,
		ContextID:  req.ContextID,
		Content:    req.Content,
		Category:   memory.CategoryData,
		Importance: req.Importance,
		Tags:       append([]string{insightTag}, req.Tags...),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "insight_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	items, err := s.store.QueryMemories(r.Context(), userID, memory.ItemFilters{
		Tags:  []string{insightTag},
		Limit: intQuery(r, "limit", 50),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "insight_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"insights": items})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.store.GetMemory(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "insight_not_found", err.Error())
		return
	}
	if !hasTag(item.Tags, insightTag) {
		respondError(w, http.StatusNotFound, "insight_not_found", "no insight with id "+id)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
