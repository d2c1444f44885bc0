package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Get returns the accumulators for an event. Unknown event ids yield a zero
// position so pricing on ephemeral (never persisted) events is well defined.
func (s *PositionStore) Get(ctx context.Context, eventID string) (domain.Position, error) {
	p := domain.Position{EventID: eventID}
	err := s.pool.QueryRow(ctx,
		"SELECT net_up, net_down FROM event_positions WHERE event_id = $1",
		eventID,
	).Scan(&p.NetUp, &p.NetDown)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, nil
		}
		return domain.Position{}, fmt.Errorf("postgres: get position for %s: %w", eventID, err)
	}
	return p, nil
}
