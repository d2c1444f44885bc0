package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attnmarkets/attnd/internal/domain"
)

// CommentStore implements domain.CommentStore using PostgreSQL.
type CommentStore struct {
	pool *pgxpool.Pool
}

// NewCommentStore creates a CommentStore backed by the given pool.
func NewCommentStore(pool *pgxpool.Pool) *CommentStore {
	return &CommentStore{pool: pool}
}

// Add inserts a comment and returns it with the generated id and timestamp.
func (s *CommentStore) Add(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_comments (id, event_id, trader_id, display_name, body, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`,
		c.ID, c.EventID, c.TraderID, c.DisplayName, c.Body, c.CreatedAt,
	)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("postgres: add comment: %w", err)
	}
	return c, nil
}

// ListByEvent returns comments for an event, newest first.
func (s *CommentStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, COALESCE(trader_id, ''), COALESCE(display_name, ''), body, created_at
		 FROM event_comments WHERE event_id = $1
		 ORDER BY created_at DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comments: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.EventID, &c.TraderID, &c.DisplayName, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
