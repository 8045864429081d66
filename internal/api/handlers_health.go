package api

import (
	"context"
	"net/http"
	"time"

	"github.com/iammorganparry/timeline/internal/games"
	"github.com/iammorganparry/timeline/internal/models"
)

type HealthHandler struct {
	registry   *games.Registry
	chronicles ChronicleStore
	narrator   HealthChecker
}

func NewHealthHandler(registry *games.Registry, chronicles ChronicleStore, narrator HealthChecker) *HealthHandler {
	return &HealthHandler{registry: registry, chronicles: chronicles, narrator: narrator}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:      "ok",
		ActiveGames: h.registry.Len(),
	}

	// Check narrator
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.narrator.HealthCheck(ctx); err != nil {
		resp.Narrator = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Narrator = models.ServiceCheck{Status: "ok"}
	}

	// Check DB
	count, err := h.chronicles.ChronicleCount()
	if err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.ChronicleCount = count
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
