package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/attnmarkets/attnd/internal/domain"
)

// ActivityCache implements domain.ActivityCache using Redis strings with
// JSON-serialized activity maps.
//
// Key schema:
//
//	activity:{eventID} - JSON object of channel name to raw score
//
// A missing key is a cache miss, not an error. The index tick treats a miss
// as a first run and re-baselines, so eviction is always safe.
type ActivityCache struct {
	rdb *redis.Client
}

// NewActivityCache creates an ActivityCache backed by the given Client.
func NewActivityCache(c *Client) *ActivityCache {
	return &ActivityCache{rdb: c.Underlying()}
}

func activityKey(eventID string) string { return "activity:" + eventID }

// Get returns the last stored snapshot for an event and whether one exists.
func (ac *ActivityCache) Get(ctx context.Context, eventID string) (domain.Activity, bool, error) {
	data, err := ac.rdb.Get(ctx, activityKey(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get activity %s: %w", eventID, err)
	}

	var act domain.Activity
	if err := json.Unmarshal(data, &act); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal activity %s: %w", eventID, err)
	}
	return act, true, nil
}

// Set stores a snapshot with the given TTL.
func (ac *ActivityCache) Set(ctx context.Context, eventID string, act domain.Activity, ttl time.Duration) error {
	data, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("redis: marshal activity %s: %w", eventID, err)
	}
	if err := ac.rdb.Set(ctx, activityKey(eventID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set activity %s: %w", eventID, err)
	}
	return nil
}

// Delete removes an event's snapshot, typically after resolution.
func (ac *ActivityCache) Delete(ctx context.Context, eventID string) error {
	if err := ac.rdb.Del(ctx, activityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redis: delete activity %s: %w", eventID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ActivityCache = (*ActivityCache)(nil)
