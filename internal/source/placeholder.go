package source

import (
	"context"
	"log/slog"
)

// Placeholder is a degraded adapter for channels that need API credentials
// we do not ship with (Reddit, GitHub search, LinkedIn). It always scores
// zero activity, which the index engine treats as "no signal" rather than
// an error.
type Placeholder struct {
	channel string
	logger  *slog.Logger
}

// NewPlaceholder creates a degraded adapter for the named channel.
func NewPlaceholder(channel string, logger *slog.Logger) *Placeholder {
	return &Placeholder{
		channel: channel,
		logger:  logger.With(slog.String("component", "source"), slog.String("channel", channel)),
	}
}

// Fetch always returns zero.
func (p *Placeholder) Fetch(ctx context.Context, keywords, exclusions []string) float64 {
	p.logger.DebugContext(ctx, "placeholder channel sampled, scoring zero")
	return 0
}
