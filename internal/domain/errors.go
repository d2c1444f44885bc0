package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEventNotOpen     = errors.New("event is not open")
	ErrWindowNotElapsed = errors.New("window has not elapsed")
	ErrInvalidSide      = errors.New("side must be 'up' or 'down'")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrNameRequired     = errors.New("name required")
	ErrTextRequired     = errors.New("text required")
	ErrCommentsClosed   = errors.New("comments not allowed for this event")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
)
