package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
)

// interpolationStep is the synthetic point spacing used when smoothing sparse
// raw history for display.
const interpolationStep = 5 * time.Minute

// HistoryService serves the index history, raw or bucketed for charts.
// Aggregation and interpolation are read-time transforms; the stored history
// is never touched.
type HistoryService struct {
	events    domain.EventStore
	snapshots domain.SnapshotStore
	logger    *slog.Logger
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(events domain.EventStore, snapshots domain.SnapshotStore, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		events:    events,
		snapshots: snapshots,
		logger:    logger.With(slog.String("component", "history_service")),
	}
}

// Raw returns the authoritative snapshot history for an event.
func (s *HistoryService) Raw(ctx context.Context, eventID string) ([]domain.IndexPoint, error) {
	points, err := s.snapshots.History(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: history %s: %w", eventID, err)
	}
	return points, nil
}

// Aggregated returns the history bucketed into the named interval, with
// sparse series smoothed by seeded interpolation. Unknown intervals are a
// validation error.
func (s *HistoryService) Aggregated(ctx context.Context, eventID, interval string) ([]domain.IndexPoint, error) {
	if _, ok := index.IntervalSeconds[interval]; !ok {
		return nil, fmt.Errorf("%w: invalid interval %q", domain.ErrInvalidPeriod, interval)
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: history %s: %w", eventID, err)
	}
	raw, err := s.snapshots.History(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: history %s: %w", eventID, err)
	}

	buckets := index.Aggregate(raw, interval, e.WindowStart)
	return index.Interpolate(buckets, interpolationStep, eventID), nil
}
