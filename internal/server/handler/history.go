package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/attnmarkets/attnd/internal/domain"
)

// HistoryService defines the history operations the handler needs.
type HistoryService interface {
	Raw(ctx context.Context, eventID string) ([]domain.IndexPoint, error)
	Aggregated(ctx context.Context, eventID, interval string) ([]domain.IndexPoint, error)
}

// HistoryHandler serves index history endpoints.
type HistoryHandler struct {
	svc    HistoryService
	logger *slog.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(svc HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		svc:    svc,
		logger: logHandler(logger, "history"),
	}
}

// Get returns the index history for an event. With an interval query
// parameter (1h, 6h, 1d, 1w, 1m) the series is bucket-aggregated and
// gap-filled; without one the raw snapshots are returned.
// GET /api/events/{id}/history?interval=5m
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "id")
	interval := r.URL.Query().Get("interval")

	var (
		points []domain.IndexPoint
		err    error
	)
	if interval == "" {
		points, err = h.svc.Raw(r.Context(), eventID)
	} else {
		points, err = h.svc.Aggregated(r.Context(), eventID, interval)
	}
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"interval": interval,
		"points":   points,
		"count":    len(points),
	})
}
