package memory

import (
	"context"
	"sync"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// SignalBus is an in-process implementation of domain.SignalBus. Delivery is
// best effort: a subscriber that cannot keep up drops messages rather than
// blocking publishers.
type SignalBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewSignalBus creates an empty in-process SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

// Publish delivers the payload to every current subscriber of the channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := append([]chan []byte(nil), b.subs[channel]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for the channel. The subscription ends and
// the returned channel closes when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, s := range subs {
			if s == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)

// RateLimiter is a permissive implementation of domain.RateLimiter for
// deployments without Redis. It never rejects.
type RateLimiter struct{}

// Allow always permits the request.
func (RateLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

var _ domain.RateLimiter = RateLimiter{}
