package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Record appends the ledger row and increments the matching position
// accumulator in one transaction, so the pricing engine always reads a
// consistent pair of accumulators.
func (s *TradeStore) Record(ctx context.Context, t domain.Trade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin record trade: %w", err)
	}
	defer tx.Rollback(ctx)

	column := "net_up"
	if t.Side == domain.SideDown {
		column = "net_down"
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO event_positions (event_id, %[1]s) VALUES ($1, $2)
		ON CONFLICT (event_id) DO UPDATE SET %[1]s = event_positions.%[1]s + $2`,
		column), t.EventID, t.Amount,
	)
	if err != nil {
		return fmt.Errorf("postgres: increment position: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (id, event_id, side, amount, trader_id, execution_price, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		t.ID, t.EventID, t.Side, t.Amount, t.TraderID, t.ExecutionPrice, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit record trade: %w", err)
	}
	return nil
}

// Volume returns the total traded amount for an event.
func (s *TradeStore) Volume(ctx context.Context, eventID string) (float64, error) {
	var volume float64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM trades WHERE event_id = $1",
		eventID,
	).Scan(&volume)
	if err != nil {
		return 0, fmt.Errorf("postgres: volume for %s: %w", eventID, err)
	}
	return volume, nil
}

// ListByTrader returns a trader's trades joined with their events, oldest
// first.
func (s *TradeStore) ListByTrader(ctx context.Context, traderID string) ([]domain.TraderTrade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.event_id, e.name, t.side, t.amount, t.execution_price,
			e.status, e.resolution, t.created_at
		FROM trades t
		JOIN events e ON e.id = t.event_id
		WHERE t.trader_id = $1
		ORDER BY t.created_at ASC`,
		traderID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by trader: %w", err)
	}
	defer rows.Close()

	var trades []domain.TraderTrade
	for rows.Next() {
		var (
			t          domain.TraderTrade
			resolution *string
		)
		if err := rows.Scan(
			&t.EventID, &t.EventName, &t.Side, &t.Amount, &t.ExecutionPrice,
			&t.Status, &resolution, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trader trade: %w", err)
		}
		if resolution != nil {
			r := domain.Resolution(*resolution)
			t.Resolution = &r
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
