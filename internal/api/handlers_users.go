package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/services"
)

// UserHandler serves signup and the authenticated self endpoint. Signup is
// the one unauthenticated write in the API.
type UserHandler struct {
	svc *services.UserService
	log zerolog.Logger
}

func NewUserHandler(svc *services.UserService, log zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

// Create POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	p, err := h.svc.Create(r.Context(), in.UserID, in.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			respond.WriteBadRequest(w, "userId is required")
		case errors.Is(err, model.ErrConflict):
			respond.WriteError(w, http.StatusConflict, "User already exists")
		default:
			writeServiceError(w, h.log, err)
		}
		return
	}
	respond.WriteJSON(w, http.StatusCreated, p)
}

// Me GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// DeleteMe DELETE /users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	if p.Role == model.RoleAdmin {
		respond.WriteError(w, http.StatusForbidden, "The admin account cannot be deleted")
		return
	}
	if err := h.svc.Delete(r.Context(), p.UserID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "userId": p.UserID})
}
