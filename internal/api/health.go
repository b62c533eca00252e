package api

import (
	"net/http"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/health"
)

// HealthHandler reports orchestrator liveness plus the cached AI-service
// status. It never blocks on a live upstream probe.
type HealthHandler struct {
	gate *health.Gate
}

func NewHealthHandler(gate *health.Gate) *HealthHandler {
	return &HealthHandler{gate: gate}
}

// Check GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ai := "down"
	if h.gate.IsHealthy() {
		ai = "up"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"aiService": ai,
	})
}
