package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/policy"
	"github.com/insightlm/orchestrator/internal/services"
	"github.com/insightlm/orchestrator/internal/upstream"
)

// unavailableMessage is the client-facing text when the AI service fails its
// pre-flight probe.
const unavailableMessage = "Python AI service is unavailable. Please try again later."

// writeServiceError maps service-layer errors to HTTP responses. Unmapped
// errors become an opaque 500; the detail goes to the log only.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var missing *policy.MissingCredentialError
	var upErr *upstream.Error

	switch {
	case errors.Is(err, services.ErrUpstreamUnavailable):
		respond.WriteError(w, http.StatusServiceUnavailable, unavailableMessage)
	case errors.As(err, &missing):
		respond.WriteBadRequest(w, missing.Error())
	case errors.As(err, &upErr):
		respond.WriteError(w, upErr.ClientStatusCode(), upErr.Message)
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "Not found")
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, model.ErrConflict):
		respond.WriteError(w, http.StatusConflict, "Conflict")
	case errors.Is(err, model.ErrForbidden):
		respond.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, model.ErrUnauthenticated):
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		log.Error().Stack().Err(err).Msg("request failed")
		respond.WriteInternalError(w, "Internal server error")
	}
}
