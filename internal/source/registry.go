// Package source implements the activity source adapters: pluggable
// fetchers, one per channel, each returning a non-negative activity score
// for a topic. Adapters are individually fault-tolerant and return 0 rather
// than an error on any transport failure, so a channel outage degrades the
// index instead of breaking a tick.
package source

import (
	"log/slog"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
)

// Registry maps tool ids and channel display names to fetchers.
type Registry struct {
	byID   map[string]index.Fetcher
	byName map[string]index.Fetcher
}

// NewRegistry builds the default registry containing all known channels.
func NewRegistry(hnFeedURL string, logger *slog.Logger) *Registry {
	r := &Registry{
		byID:   map[string]index.Fetcher{},
		byName: map[string]index.Fetcher{},
	}
	r.Register("hn_frontpage", NewHackerNews(hnFeedURL, logger))
	r.Register("reddit", NewPlaceholder("reddit", logger))
	r.Register("github", NewPlaceholder("github", logger))
	r.Register("linkedin", NewPlaceholder("linkedin", logger))
	return r
}

// Register adds a fetcher under a tool id and its channel display name.
func (r *Registry) Register(toolID string, f index.Fetcher) {
	r.byID[toolID] = f
	r.byName[domain.ToolName(toolID)] = f
}

// Lookup resolves a fetcher by tool id.
func (r *Registry) Lookup(toolID string) (index.Fetcher, bool) {
	f, ok := r.byID[toolID]
	return f, ok
}

// LookupName resolves a fetcher by legacy channel display name.
func (r *Registry) LookupName(channelName string) (index.Fetcher, bool) {
	f, ok := r.byName[channelName]
	return f, ok
}
