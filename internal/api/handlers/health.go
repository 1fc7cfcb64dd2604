package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/etvincen/boredapi/internal/api"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			slog.Default().Warn("health check failed", "component", "health", "error", err)
			api.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	api.Success(w, http.StatusOK, HealthResponse{Status: "ok"})
}
