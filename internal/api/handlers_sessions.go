package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/services"
)

// sessionNotFoundMessage deliberately does not distinguish "absent" from
// "owned by someone else".
const sessionNotFoundMessage = "Chat session not found or access denied."

// SessionHandler serves chat-session persistence endpoints.
type SessionHandler struct {
	svc *services.SessionService
	log zerolog.Logger
}

func NewSessionHandler(svc *services.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, log: log}
}

// Save POST /chat/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in struct {
		SessionID string              `json:"sessionId"`
		Messages  []model.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	sessionID, count, err := h.svc.Save(r.Context(), p.UserID, in.SessionID, in.Messages)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":    sessionID,
		"messageCount": count,
	})
}

// List GET /chat/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	out, err := h.svc.List(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if out == nil {
		out = []*model.SessionSummary{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": out, "count": len(out)})
}

// Get GET /chat/session/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	sessionID := mux.Vars(r)["sessionId"]
	out, err := h.svc.Get(r.Context(), p.UserID, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, sessionNotFoundMessage)
			return
		}
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Delete DELETE /chat/session/{sessionId}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	sessionID := mux.Vars(r)["sessionId"]
	if err := h.svc.Delete(r.Context(), p.UserID, sessionID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, sessionNotFoundMessage)
			return
		}
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "sessionId": sessionID})
}
