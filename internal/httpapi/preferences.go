package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	prefs, err := s.store.GetUserPreferences(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	UserID      string         `json:"user_id"`
	Preferences map[string]any `json:"preferences"`
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	s.mergePreferences(w, r, true)
}

// handleSyncPreferences accepts a full client-side snapshot. Unknown keys are
// dropped rather than rejected so stale clients never lose their sync.
func (s *Server) handleSyncPreferences(w http.ResponseWriter, r *http.Request) {
	s.mergePreferences(w, r, false)
}

func (s *Server) mergePreferences(w http.ResponseWriter, r *http.Request, strict bool) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || len(req.Preferences) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id and preferences are required")
		return
	}

	prefs, err := s.store.UpdateUserPreferences(r.Context(), req.UserID, req.Preferences, strict)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_preferences", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}

	prefs, err := s.store.ResetUserPreferences(r.Context(), req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

// Dashboards and saved queries are opaque payloads stored per user inside
// the preference document, keyed by id.

type collectionItemRequest struct {
	UserID  string         `json:"user_id"`
	ID      string         `json:"id,omitempty"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	s.listCollection(w, r, memory.PrefDashboards)
}

func (s *Server) handleUpsertDashboard(w http.ResponseWriter, r *http.Request) {
	s.upsertCollectionItem(w, r, memory.PrefDashboards)
}

func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	s.deleteCollectionItem(w, r, memory.PrefDashboards)
}

func (s *Server) handleListSavedQueries(w http.ResponseWriter, r *http.Request) {
	s.listCollection(w, r, memory.PrefSavedQueries)
}

func (s *Server) handleUpsertSavedQuery(w http.ResponseWriter, r *http.Request) {
	s.upsertCollectionItem(w, r, memory.PrefSavedQueries)
}

func (s *Server) handleDeleteSavedQuery(w http.ResponseWriter, r *http.Request) {
	s.deleteCollectionItem(w, r, memory.PrefSavedQueries)
}

func (s *Server) listCollection(w http.ResponseWriter, r *http.Request, key string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	prefs, err := s.store.GetUserPreferences(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{key: collectionOf(prefs, key)})
}

func (s *Server) upsertCollectionItem(w http.ResponseWriter, r *http.Request, key string) {
	var req collectionItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || len(req.Payload) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id and payload are required")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		id = req.ID
	}
	if id == "" {
		id = uuid.NewString()
	}

	prefs, err := s.store.GetUserPreferences(r.Context(), req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	items := collectionOf(prefs, key)
	items[id] = req.Payload

	if _, err := s.store.UpdateUserPreferences(r.Context(), req.UserID, map[string]any{key: items}, false); err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "payload": req.Payload})
}

func (s *Server) deleteCollectionItem(w http.ResponseWriter, r *http.Request, key string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	prefs, err := s.store.GetUserPreferences(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	items := collectionOf(prefs, key)
	if _, ok := items[id]; !ok {
		respondError(w, http.StatusNotFound, "not_found", "no item with id "+id)
		return
	}
	delete(items, id)

	if _, err := s.store.UpdateUserPreferences(r.Context(), userID, map[string]any{key: items}, false); err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func collectionOf(prefs memory.Preferences, key string) map[string]any {
	if raw, ok := prefs[key]; ok {
		if m, ok := raw.(map[string]any); ok {
			out := make(map[string]any, len(m))
			for k, v := range m {
				out[k] = v
			}
			return out
		}
	}
	return map[string]any{}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return "", false
	}
	return userID, true
}
