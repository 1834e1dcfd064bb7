// Package handler contains the HTTP handlers for the query surface. Handlers
// never compute datasets themselves; they delegate to the opportunity service,
// which serves from cache.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arbilo/arbilod/internal/domain"
)

// OpportunityService defines the query methods the opportunity handler
// requires.
type OpportunityService interface {
	QueryTracker(ctx context.Context) (domain.Envelope, error)
	QueryPairwise(ctx context.Context, investment float64) (domain.Envelope, error)
	QueryTriangular(ctx context.Context) (domain.Envelope, error)
}

// OpportunityHandler serves the three opportunity datasets.
type OpportunityHandler struct {
	svc    OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler with the given service
// and logger.
func NewOpportunityHandler(svc OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{svc: svc, logger: logger}
}

// Tracker returns the per-coin cross-venue spread summary.
// GET /api/opportunities/tracker
func (h *OpportunityHandler) Tracker(w http.ResponseWriter, r *http.Request) {
	env, err := h.svc.QueryTracker(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: tracker query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load tracker data")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// Pairwise returns ranked two-venue opportunities sized to the requested
// investment. The investment path segment is optional; when absent the
// service's configured default applies.
// GET /api/opportunities/pairwise/{investment}
func (h *OpportunityHandler) Pairwise(w http.ResponseWriter, r *http.Request) {
	investment, ok := parseInvestment(r, "investment")
	if !ok {
		writeError(w, http.StatusBadRequest, "investment must be a positive number")
		return
	}

	env, err := h.svc.QueryPairwise(r.Context(), investment)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: pairwise query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load pairwise data")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// Triangular returns single-venue three-leg opportunities. Unlike the other
// endpoints it responds with the dataset alone, without refresh metadata.
// GET /api/opportunities/triangular
func (h *OpportunityHandler) Triangular(w http.ResponseWriter, r *http.Request) {
	env, err := h.svc.QueryTriangular(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: triangular query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load triangular data")
		return
	}

	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("[]")
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": data})
}
