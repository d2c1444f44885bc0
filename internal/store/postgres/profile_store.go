package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a ProfileStore backed by the given pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// GetOrCreate fetches a profile, creating it with the starting balance on
// first sight. An existing profile's display name is refreshed when the
// caller supplies a non-empty one.
func (s *ProfileStore) GetOrCreate(ctx context.Context, traderID, displayName string) (domain.Profile, error) {
	var p domain.Profile
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (trader_id, display_name, balance)
		 VALUES ($1, NULLIF($2, ''), $3)
		 ON CONFLICT (trader_id) DO UPDATE
		 SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name)
		 RETURNING trader_id, COALESCE(display_name, ''), balance, created_at`,
		traderID, displayName, domain.DefaultBalance,
	).Scan(&p.TraderID, &p.DisplayName, &p.Balance, &p.CreatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("postgres: get or create profile: %w", err)
	}
	return p, nil
}

// Balance returns the trader's balance, or ErrNotFound for unknown traders.
func (s *ProfileStore) Balance(ctx context.Context, traderID string) (float64, error) {
	var balance float64
	err := s.pool.QueryRow(ctx,
		"SELECT balance FROM profiles WHERE trader_id = $1", traderID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: get balance: %w", err)
	}
	return balance, nil
}

// UpdateBalance overwrites the trader's balance.
func (s *ProfileStore) UpdateBalance(ctx context.Context, traderID string, balance float64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE profiles SET balance = $2 WHERE trader_id = $1", traderID, balance,
	)
	if err != nil {
		return fmt.Errorf("postgres: update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateDisplayName overwrites the trader's display name.
func (s *ProfileStore) UpdateDisplayName(ctx context.Context, traderID, displayName string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE profiles SET display_name = NULLIF($2, '') WHERE trader_id = $1",
		traderID, displayName,
	)
	if err != nil {
		return fmt.Errorf("postgres: update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
