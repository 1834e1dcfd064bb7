package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports reachability of the cache backend. Optional; when nil the
// health response omits the cache field.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	cache  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. cache may be nil when no Redis
// backend is configured.
func NewHealthHandler(cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{cache: cache, logger: logger}
}

// HealthCheck responds with a JSON status. The service reports ok even when
// the cache backend is down; the process keeps serving from its local
// fallback in that state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			resp["cache"] = "degraded"
		} else {
			resp["cache"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
