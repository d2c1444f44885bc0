package domain

import (
	"context"
	"time"
)

// EventFilter narrows event list queries.
type EventFilter struct {
	Status EventStatus // empty matches all statuses
	Name   string      // exact topic name
	Query  string      // case-insensitive substring search on name
}

// EventStore persists events and drives their status transitions.
type EventStore interface {
	Create(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, f EventFilter) ([]Event, error)
	// UpdateIndex persists a freshly computed index_current value.
	UpdateIndex(ctx context.Context, id string, value float64) error
	// Accept transitions a proposed event to open and fixes its window and
	// baseline.
	Accept(ctx context.Context, id string, windowStart, windowEnd time.Time, indexStart, indexCurrent float64, cfg EventConfig) error
	// Reject transitions an event to rejected, persisting the reason inside
	// the config payload.
	Reject(ctx context.Context, id string, cfg EventConfig) error
	// Resolve sets status=resolved with the outcome and explanation. It only
	// touches rows still in the open state and reports whether a row was
	// updated, which makes concurrent resolution ticks idempotent.
	Resolve(ctx context.Context, id string, r Resolution, explanation string) (bool, error)
	// Delete removes the event and all dependent rows.
	Delete(ctx context.Context, id string) (bool, error)
}

// SnapshotStore persists the append-only index history.
type SnapshotStore interface {
	Append(ctx context.Context, eventID string, p IndexPoint) error
	AppendBatch(ctx context.Context, eventID string, points []IndexPoint) error
	History(ctx context.Context, eventID string) ([]IndexPoint, error)
}

// PositionStore reads the per-event bet accumulators. Positions are written
// only through TradeStore.Record, atomically with the ledger row.
type PositionStore interface {
	Get(ctx context.Context, eventID string) (Position, error)
}

// TradeStore persists the append-only bet ledger.
type TradeStore interface {
	// Record appends the trade and increments the matching position
	// accumulator in a single transaction.
	Record(ctx context.Context, t Trade) error
	Volume(ctx context.Context, eventID string) (float64, error)
	ListByTrader(ctx context.Context, traderID string) ([]TraderTrade, error)
}

// CommentStore persists event comments.
type CommentStore interface {
	Add(ctx context.Context, c Comment) (Comment, error)
	ListByEvent(ctx context.Context, eventID string) ([]Comment, error)
}

// ProfileStore persists trader profiles.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, traderID, displayName string) (Profile, error)
	Balance(ctx context.Context, traderID string) (float64, error)
	UpdateBalance(ctx context.Context, traderID string, balance float64) error
	UpdateDisplayName(ctx context.Context, traderID, displayName string) error
}
