package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Append adds one point to the event's index history.
func (s *SnapshotStore) Append(ctx context.Context, eventID string, p domain.IndexPoint) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO index_snapshots (event_id, t, value) VALUES ($1, $2, $3)",
		eventID, p.T, p.Value,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot for %s: %w", eventID, err)
	}
	return nil
}

// AppendBatch inserts multiple points efficiently using a pgx Batch (used
// for historical backfill at accept time).
func (s *SnapshotStore) AppendBatch(ctx context.Context, eventID string, points []domain.IndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(
			"INSERT INTO index_snapshots (event_id, t, value) VALUES ($1, $2, $3)",
			eventID, p.T, p.Value,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append snapshot batch item %d: %w", i, err)
		}
	}
	return nil
}

// History returns the event's full index history ordered by timestamp.
func (s *SnapshotStore) History(ctx context.Context, eventID string) ([]domain.IndexPoint, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT t, value FROM index_snapshots WHERE event_id = $1 ORDER BY t",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: history for %s: %w", eventID, err)
	}
	defer rows.Close()

	var points []domain.IndexPoint
	for rows.Next() {
		var p domain.IndexPoint
		if err := rows.Scan(&p.T, &p.Value); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
