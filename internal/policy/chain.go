package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// Chain wraps an optional primary policy with the mandatory fallback. Every
// call runs under an explicit timeout; on error, timeout, or an absent
// primary the fixed default decision is substituted, so Chain itself never
// fails and callers never learn which backend answered.
type Chain struct {
	primary  domain.Policy
	fallback *Fallback
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChain builds a Chain. primary may be nil.
func NewChain(primary domain.Policy, timeout time.Duration, logger *slog.Logger) *Chain {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chain{
		primary:  primary,
		fallback: NewFallback(),
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "policy")),
	}
}

func (c *Chain) logFallback(ctx context.Context, op string, err error) {
	c.logger.WarnContext(ctx, "policy call failed, using default",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// CheckReasonability consults the primary policy, passing by default.
func (c *Chain) CheckReasonability(ctx context.Context, name, sourceURL, description string) domain.ReasonabilityResult {
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if r, err := c.primary.CheckReasonability(cctx, name, sourceURL, description); err == nil {
			return r
		} else {
			c.logFallback(ctx, "check_reasonability", err)
		}
	}
	r, _ := c.fallback.CheckReasonability(ctx, name, sourceURL, description)
	return r
}

// SelectTools consults the primary policy, defaulting to the fixed channel
// set and name-derived keywords.
func (c *Chain) SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) domain.EventConfig {
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if cfg, err := c.primary.SelectTools(cctx, name, sourceURL, description, available, windowMinutes); err == nil {
			return cfg
		} else {
			c.logFallback(ctx, "select_tools", err)
		}
	}
	cfg, _ := c.fallback.SelectTools(ctx, name, sourceURL, description, available, windowMinutes)
	return cfg
}

// DecideAccept consults the primary policy, accepting by default.
func (c *Chain) DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) domain.AcceptDecision {
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if d, err := c.primary.DecideAccept(cctx, name, indexValue, activity); err == nil {
			return d
		} else {
			c.logFallback(ctx, "decide_accept", err)
		}
	}
	d, _ := c.fallback.DecideAccept(ctx, name, indexValue, activity)
	return d
}

// Explain consults the primary policy, falling back to the template.
func (c *Chain) Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) string {
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if s, err := c.primary.Explain(cctx, name, indexStart, indexEnd, history); err == nil && s != "" {
			return s
		} else if err != nil {
			c.logFallback(ctx, "explain", err)
		}
	}
	s, _ := c.fallback.Explain(ctx, name, indexStart, indexEnd, history)
	return s
}

// SuggestWindow consults the primary policy and clamps the result to the
// canonical 60 or 1440 minute windows.
func (c *Chain) SuggestWindow(ctx context.Context, name, sourceURL, description string) int {
	minutes := 60
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if m, err := c.primary.SuggestWindow(cctx, name, sourceURL, description); err == nil {
			minutes = m
		} else {
			c.logFallback(ctx, "suggest_window", err)
		}
	}
	if minutes >= 1440 {
		return 1440
	}
	return 60
}

// Headline consults the primary policy, falling back to templated copy.
func (c *Chain) Headline(ctx context.Context, name, marketType, sourceURL, description string) domain.Headline {
	if c.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if h, err := c.primary.Headline(cctx, name, marketType, sourceURL, description); err == nil && h.Headline != "" {
			if h.LabelUp == "" {
				h.LabelUp = "Heating up"
			}
			if h.LabelDown == "" {
				h.LabelDown = "Cooling down"
			}
			return h
		} else if err != nil {
			c.logFallback(ctx, "headline", err)
		}
	}
	h, _ := c.fallback.Headline(ctx, name, marketType, sourceURL, description)
	return h
}
