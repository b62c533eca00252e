package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/services"
)

// GenerationHandler serves slide-deck and report generation plus artifact
// download.
type GenerationHandler struct {
	svc       *services.GenerationService
	artifacts *artifacts.Dir
	log       zerolog.Logger
}

func NewGenerationHandler(svc *services.GenerationService, dir *artifacts.Dir, log zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{svc: svc, artifacts: dir, log: log}
}

// GeneratePPT POST /generation/ppt
func (h *GenerationHandler) GeneratePPT(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.GenerationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Topic == "" {
		respond.WriteBadRequest(w, "Topic is required")
		return
	}
	out, err := h.svc.GeneratePPT(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Download GET /generation/ppt/download/{fileId}
//
// Only the principal that requested the generation may fetch the artifact;
// anyone else sees a 404, same as an unknown id.
func (h *GenerationHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	fileID := mux.Vars(r)["fileId"]
	path, err := h.artifacts.Resolve(fileID, p.UserID)
	if err != nil {
		if errors.Is(err, artifacts.ErrInvalidID) {
			respond.WriteBadRequest(w, "Invalid file id")
			return
		}
		writeServiceError(w, h.log, err)
		return
	}

	h.log.Info().Str("user_id", p.UserID).Str("file_id", fileID).Msg("artifact download")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileID))
	http.ServeFile(w, r, path)
}

// GenerateReport POST /generation/report
//
// The upstream PDF bytes are relayed to the client as they arrive.
func (h *GenerationHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.GenerationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Topic == "" {
		respond.WriteBadRequest(w, "Topic is required")
		return
	}

	stream, err := h.svc.GenerateReport(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	defer func() { _ = stream.Close() }()

	ct := stream.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	w.Header().Set("Content-Type", ct)
	if stream.Disposition != "" {
		w.Header().Set("Content-Disposition", stream.Disposition)
	} else {
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	}
	w.WriteHeader(http.StatusOK)

	pipeStream(w, stream.Body)
}
