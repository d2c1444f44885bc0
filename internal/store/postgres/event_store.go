package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventSelectCols = `id, name, status, window_start, window_end,
	index_start, index_current, resolution, explanation, config, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		e          domain.Event
		resolution *string
		configJSON []byte
	)
	err := row.Scan(
		&e.ID, &e.Name, &e.Status, &e.WindowStart, &e.WindowEnd,
		&e.IndexStart, &e.IndexCurrent, &resolution, &e.Explanation,
		&configJSON, &e.CreatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	if resolution != nil {
		r := domain.Resolution(*resolution)
		e.Resolution = &r
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &e.Config); err != nil {
			return domain.Event{}, fmt.Errorf("decode config: %w", err)
		}
	}
	return e, nil
}

// Create inserts the event in its initial state together with its zeroed
// position row.
func (s *EventStore) Create(ctx context.Context, e domain.Event) error {
	configJSON, err := json.Marshal(e.Config)
	if err != nil {
		return fmt.Errorf("postgres: encode event config: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create event: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, name, status, window_start, window_end,
			index_start, index_current, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Status, e.WindowStart, e.WindowEnd,
		e.IndexStart, e.IndexCurrent, configJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert event: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO event_positions (event_id, net_up, net_down) VALUES ($1, 0, 0)",
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create event: %w", err)
	}
	return nil
}

// GetByID returns a single event, or domain.ErrNotFound.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+eventSelectCols+" FROM events WHERE id = $1", id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return e, nil
}

// List returns events matching the filter, newest first.
func (s *EventStore) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	query := "SELECT " + eventSelectCols + " FROM events"
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, f.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateIndex persists a freshly computed index_current value.
func (s *EventStore) UpdateIndex(ctx context.Context, id string, value float64) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE events SET index_current = $1 WHERE id = $2", value, id)
	if err != nil {
		return fmt.Errorf("postgres: update index for %s: %w", id, err)
	}
	return nil
}

// Accept transitions a proposed event to open with its final window,
// baseline, and config.
func (s *EventStore) Accept(ctx context.Context, id string, windowStart, windowEnd time.Time, indexStart, indexCurrent float64, cfg domain.EventConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: encode event config: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE events SET status = 'open', window_start = $1, window_end = $2,
			index_start = $3, index_current = $4, config = $5
		WHERE id = $6`,
		windowStart, windowEnd, indexStart, indexCurrent, configJSON, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: accept event %s: %w", id, err)
	}
	return nil
}

// Reject transitions an event to rejected, persisting the reason inside the
// config payload.
func (s *EventStore) Reject(ctx context.Context, id string, cfg domain.EventConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: encode event config: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		"UPDATE events SET status = 'rejected', config = $1 WHERE id = $2",
		configJSON, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: reject event %s: %w", id, err)
	}
	return nil
}

// Resolve sets status=resolved with the outcome and explanation. The guard
// on status='open' makes concurrent resolution ticks idempotent: only the
// first writer observes a row update.
func (s *EventStore) Resolve(ctx context.Context, id string, r domain.Resolution, explanation string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET status = 'resolved', resolution = $1, explanation = $2
		WHERE id = $3 AND status = 'open'`,
		string(r), explanation, id,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: resolve event %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes the event; snapshots, trades, positions, and comments
// cascade at the schema level.
func (s *EventStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete event %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
