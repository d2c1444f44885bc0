// Package index implements the attention index engine: it turns noisy
// per-channel activity signals into a single comparable number with
// well-defined update semantics. The index starts at 100 for every window
// and only reacts to increases in activity between ticks.
package index

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// ChannelWeights is the fixed per-channel weight table. Weights sum to 1
// across the full channel set; channels without a weight contribute nothing.
var ChannelWeights = map[string]float64{
	"Hacker News": 0.6,
	"Reddit":      0.4,
}

const (
	// logDeltaCap bounds each channel's log-scaled delta before weighting
	// so one viral channel cannot dominate unboundedly.
	logDeltaCap = 5.0

	// deltaScale converts the weighted delta sum into index points.
	deltaScale = 10.0

	// defaultFetchTimeout bounds a single adapter call so one slow channel
	// cannot stall an entire tick.
	defaultFetchTimeout = 15 * time.Second
)

// Fetcher samples a non-negative activity score for a topic on one channel.
// Implementations fail soft: any transport error yields 0.
type Fetcher interface {
	Fetch(ctx context.Context, keywords, exclusions []string) float64
}

// Registry resolves activity sources by tool id or legacy channel name.
type Registry interface {
	Lookup(toolID string) (Fetcher, bool)
	LookupName(channelName string) (Fetcher, bool)
}

// Engine combines per-channel activity into one index value.
type Engine struct {
	reg          Registry
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewEngine creates an Engine over the given source registry. fetchTimeout
// bounds each adapter call; zero selects the default.
func NewEngine(reg Registry, fetchTimeout time.Duration, logger *slog.Logger) *Engine {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Engine{
		reg:          reg,
		fetchTimeout: fetchTimeout,
		logger:       logger.With(slog.String("component", "index_engine")),
	}
}

// Compute samples all selected channels and returns the new index value plus
// the sampled activity map, which becomes the delta baseline for the next
// call. A nil prev means first run: the index is exactly 100 regardless of
// activity, establishing that the index measures change, not absolute
// popularity. Compute never fails; a total adapter outage degrades to 100.
func (e *Engine) Compute(ctx context.Context, cfg domain.EventConfig, prev domain.Activity) (float64, domain.Activity) {
	activity := e.sample(ctx, cfg)

	if prev == nil {
		return domain.IndexBaseline, activity
	}

	// Delta per channel, log-scaled. Only increases count: topics cannot
	// lose index from mere inactivity between ticks.
	total := 0.0
	for ch, cur := range activity {
		w := ChannelWeights[ch]
		if w == 0 {
			continue
		}
		delta := cur - prev[ch]
		if delta <= 0 {
			continue
		}
		d := math.Log1p(delta)
		if d > logDeltaCap {
			d = logDeltaCap
		}
		total += w * d
	}

	return round2(domain.IndexBaseline + deltaScale*total), activity
}

// sample fetches the current activity score on every selected channel.
// Tools (by id) are resolved in preference to legacy channels (by display
// name); with neither set the default channel set is used.
func (e *Engine) sample(ctx context.Context, cfg domain.EventConfig) domain.Activity {
	activity := domain.Activity{}

	fetch := func(name string, f Fetcher) {
		fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
		activity[name] = f.Fetch(fctx, cfg.Keywords, cfg.Exclusions)
	}

	switch {
	case len(cfg.Tools) > 0:
		for _, id := range cfg.Tools {
			f, ok := e.reg.Lookup(id)
			if !ok {
				e.logger.WarnContext(ctx, "unknown tool id, skipping", slog.String("tool", id))
				continue
			}
			fetch(domain.ToolName(id), f)
		}
	case len(cfg.Channels) > 0:
		for _, name := range cfg.Channels {
			f, ok := e.reg.LookupName(name)
			if !ok {
				e.logger.WarnContext(ctx, "unknown channel, skipping", slog.String("channel", name))
				continue
			}
			fetch(name, f)
		}
	default:
		for _, id := range domain.DefaultToolIDs {
			if f, ok := e.reg.Lookup(id); ok {
				fetch(domain.ToolName(id), f)
			}
		}
	}

	return activity
}

// TotalActivity sums the sampled scores across channels; the proposal flow
// uses it as the traction measure.
func TotalActivity(act domain.Activity) float64 {
	total := 0.0
	for _, v := range act {
		total += v
	}
	return total
}

// ClampHolistic bounds an index value from the holistic estimator to the
// same [0, 200] range the multi-channel pipeline can produce, so downstream
// code is source-agnostic.
func ClampHolistic(v float64) float64 {
	return round2(math.Max(0, math.Min(200, v)))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
