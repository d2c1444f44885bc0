// Package memory provides process-local fallbacks for the cache interfaces,
// used when no Redis address is configured. State does not survive restarts,
// which the index tick tolerates by re-baselining.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

type entry struct {
	act     domain.Activity
	expires time.Time
}

// ActivityCache is a mutex-guarded map implementation of domain.ActivityCache.
type ActivityCache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewActivityCache creates an empty in-memory ActivityCache.
func NewActivityCache() *ActivityCache {
	return &ActivityCache{entries: make(map[string]entry)}
}

// Get returns the snapshot for an event and whether a live one exists.
func (c *ActivityCache) Get(_ context.Context, eventID string) (domain.Activity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[eventID]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, eventID)
		return nil, false, nil
	}
	// Copy so callers cannot mutate the cached map.
	act := make(domain.Activity, len(e.act))
	for k, v := range e.act {
		act[k] = v
	}
	return act, true, nil
}

// Set stores a snapshot. A non-positive ttl means no expiry.
func (c *ActivityCache) Set(_ context.Context, eventID string, act domain.Activity, ttl time.Duration) error {
	cp := make(domain.Activity, len(act))
	for k, v := range act {
		cp[k] = v
	}

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[eventID] = entry{act: cp, expires: expires}
	c.mu.Unlock()
	return nil
}

// Delete removes an event's snapshot.
func (c *ActivityCache) Delete(_ context.Context, eventID string) error {
	c.mu.Lock()
	delete(c.entries, eventID)
	c.mu.Unlock()
	return nil
}

var _ domain.ActivityCache = (*ActivityCache)(nil)
