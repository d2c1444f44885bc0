package domain

import (
	"context"
	"time"
)

// ActivityCache holds the last sampled activity snapshot per event. It is the
// delta baseline for the next index tick. Implementations may evict entries;
// a miss is treated as a first run, which re-baselines the index at 100.
type ActivityCache interface {
	// Get returns the snapshot and whether one exists for the event.
	Get(ctx context.Context, eventID string) (Activity, bool, error)
	Set(ctx context.Context, eventID string, act Activity, ttl time.Duration) error
	Delete(ctx context.Context, eventID string) error
}

// SignalBus provides publish/subscribe messaging between the scheduler,
// services, and the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. The subscription closes
	// when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Signal bus channel names.
const (
	ChannelIndexUpdates = "index_updates"
	ChannelTrades       = "trades"
	ChannelResolutions  = "resolutions"
	ChannelEvents       = "events"
)

// RateLimiter provides request rate limiting for the public write endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
