// Package notify provides a multi-channel operator notification system.
// Notifications are dispatched to all registered senders (Telegram, Discord)
// and can be filtered by kind so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/attnmarkets/attnd/internal/domain"
)

// Notification kinds.
const (
	KindProposed = "market_proposed"
	KindOpened   = "market_opened"
	KindResolved = "market_resolved"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed kinds; Notify only forwards messages whose kind is in the
// allowed set. An empty set allows everything.
type Notifier struct {
	senders []Sender
	kinds   map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[strings.TrimSpace(k)] = true
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// MarketProposed announces a freshly proposed market.
func (n *Notifier) MarketProposed(ctx context.Context, e domain.Event) error {
	return n.Notify(ctx, KindProposed, "Market proposed",
		fmt.Sprintf("%s (%s window)", e.Name, e.Config.MarketType))
}

// MarketOpened announces an accepted market.
func (n *Notifier) MarketOpened(ctx context.Context, e domain.Event) error {
	return n.Notify(ctx, KindOpened,
		"Market open: "+e.Name,
		fmt.Sprintf("Baseline index %.2f, resolves at %s.",
			e.IndexStart, e.WindowEnd.UTC().Format("15:04 UTC Jan 2")))
}

// MarketResolved announces a resolved market and its outcome.
func (n *Notifier) MarketResolved(ctx context.Context, e domain.Event) error {
	outcome := "DOWN"
	if e.Resolution != nil && *e.Resolution == domain.ResolutionUp {
		outcome = "UP"
	}
	return n.Notify(ctx, KindResolved,
		fmt.Sprintf("Market resolved %s: %s", outcome, e.Name),
		fmt.Sprintf("Index moved %.2f -> %.2f. %s", e.IndexStart, e.IndexCurrent, e.Explanation))
}

// Notify sends a notification to all senders only if the kind is allowed.
func (n *Notifier) Notify(ctx context.Context, kind, title, message string) error {
	if len(n.kinds) > 0 && !n.kinds[kind] {
		n.logger.DebugContext(ctx, "notification filtered out",
			slog.String("kind", kind),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
