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

// SettingsHandler serves provider-key storage and the key-access request
// endpoint.
type SettingsHandler struct {
	svc *services.SettingsService
	log zerolog.Logger
}

func NewSettingsHandler(svc *services.SettingsService, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, log: log}
}

// SaveKeys POST /settings/keys
func (h *SettingsHandler) SaveKeys(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.KeySettings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.svc.SaveKeys(r.Context(), p.UserID, in); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// KeyStatus GET /settings/keys
func (h *SettingsHandler) KeyStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	out, err := h.svc.KeyStatus(r.Context(), p)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// RequestKeyAccess POST /settings/key-request
func (h *SettingsHandler) RequestKeyAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	if err := h.svc.RequestKeyAccess(r.Context(), p); err != nil {
		if errors.Is(err, model.ErrConflict) {
			respond.WriteError(w, http.StatusConflict, "A key request is already pending or approved")
			return
		}
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": model.KeyRequestPending})
}
