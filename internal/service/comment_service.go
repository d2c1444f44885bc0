package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/attnmarkets/attnd/internal/domain"
)

// maxCommentLength bounds comment bodies.
const maxCommentLength = 1000

// CommentService manages per-event comment threads.
type CommentService struct {
	events   domain.EventStore
	comments domain.CommentStore
	logger   *slog.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(events domain.EventStore, comments domain.CommentStore, logger *slog.Logger) *CommentService {
	return &CommentService{
		events:   events,
		comments: comments,
		logger:   logger.With(slog.String("component", "comment_service")),
	}
}

// Add posts a comment on an event. Comments are allowed while the market is
// open or after it has resolved, but not on proposals or rejections.
func (s *CommentService) Add(ctx context.Context, eventID, traderID, displayName, body string) (domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Comment{}, domain.ErrTextRequired
	}
	if len(body) > maxCommentLength {
		body = body[:maxCommentLength]
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("service: add comment: %w", err)
	}
	if e.Status != domain.StatusOpen && e.Status != domain.StatusResolved {
		return domain.Comment{}, domain.ErrCommentsClosed
	}

	c, err := s.comments.Add(ctx, domain.Comment{
		EventID:     eventID,
		TraderID:    traderID,
		DisplayName: displayName,
		Body:        body,
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("service: add comment: %w", err)
	}
	return c, nil
}

// List returns an event's comments, newest first.
func (s *CommentService) List(ctx context.Context, eventID string) ([]domain.Comment, error) {
	comments, err := s.comments.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: list comments %s: %w", eventID, err)
	}
	return comments, nil
}
