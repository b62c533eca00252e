package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/assets"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/services"
)

// UploadHandler serves the multipart document upload endpoint.
type UploadHandler struct {
	svc *services.UploadService
	log zerolog.Logger
}

func NewUploadHandler(svc *services.UploadService, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, log: log}
}

// Upload POST /upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}

	// Bound the whole request body; the pipeline re-checks the file part.
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxUploadSize+1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.WriteBadRequest(w, "A file field named 'file' is required")
		return
	}
	defer func() { _ = file.Close() }()

	mimeType := header.Header.Get("Content-Type")
	result, err := h.svc.Upload(r.Context(), p, header.Filename, mimeType, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, assets.ErrTooLarge):
			respond.WriteBadRequest(w, "File exceeds the 20 MB upload limit")
		case errors.Is(err, assets.ErrInvalidType):
			respond.WriteBadRequest(w, "File type is not supported")
		default:
			writeServiceError(w, h.log, err)
		}
		return
	}

	h.log.Info().
		Str("user_id", p.UserID).
		Str("file", result.File.ServerName).
		Str("category", result.File.Category).
		Bool("ingested", result.Ingested).
		Msg("upload complete")
	respond.WriteJSON(w, http.StatusOK, result)
}
