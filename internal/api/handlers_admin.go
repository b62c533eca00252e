package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/services"
)

// AdminHandler serves the administrator's key-request review endpoints. The
// router wraps these with the admin-role guard.
type AdminHandler struct {
	svc *services.AdminService
	log zerolog.Logger
}

func NewAdminHandler(svc *services.AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log}
}

// keyRequestView strips secrets-adjacent fields from the principal for the
// admin listing.
type keyRequestView struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Status      string  `json:"status"`
	RequestedAt *string `json:"requestedAt,omitempty"`
	ProcessedAt *string `json:"processedAt,omitempty"`
}

// ListKeyRequests GET /admin/key-requests
func (h *AdminHandler) ListKeyRequests(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListKeyRequests(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	out := make([]keyRequestView, 0, len(all))
	for _, p := range all {
		v := keyRequestView{UserID: p.UserID, DisplayName: p.DisplayName, Status: p.KeyRequest.Status}
		if p.KeyRequest.RequestedAt != nil {
			s := p.KeyRequest.RequestedAt.UTC().Format(time.RFC3339)
			v.RequestedAt = &s
		}
		if p.KeyRequest.ProcessedAt != nil {
			s := p.KeyRequest.ProcessedAt.UTC().Format(time.RFC3339)
			v.ProcessedAt = &s
		}
		out = append(out, v)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": out, "count": len(out)})
}

// ProcessKeyRequest POST /admin/key-requests/{userId}
func (h *AdminHandler) ProcessKeyRequest(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var in struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.svc.ProcessKeyRequest(r.Context(), userID, in.Action); err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			respond.WriteBadRequest(w, "Action must be 'approve' or 'deny'")
		case errors.Is(err, model.ErrNotFound):
			respond.WriteNotFound(w, "User not found")
		case errors.Is(err, model.ErrConflict):
			respond.WriteError(w, http.StatusConflict, "No pending key request for this user")
		default:
			writeServiceError(w, h.log, err)
		}
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"userId": userID, "action": in.Action})
}
