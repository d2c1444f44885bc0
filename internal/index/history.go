package index

import (
	"sort"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// IntervalSeconds maps chart interval names to bucket sizes.
var IntervalSeconds = map[string]int64{
	"1h": 3600,
	"6h": 21600,
	"1d": 86400,
	"1w": 604800,
	"1m": 2592000, // ~30 days
}

// Aggregate buckets raw snapshots into fixed-size windows aligned to the
// event's window start, emitting the last (closing) value per bucket. An
// unknown interval or empty input returns the points unchanged. This is a
// read-time transform; the authoritative history is never rewritten.
func Aggregate(raw []domain.IndexPoint, interval string, windowStart time.Time) []domain.IndexPoint {
	bucketSeconds, ok := IntervalSeconds[interval]
	if !ok || len(raw) == 0 {
		return raw
	}

	align := windowStart.UTC().Unix()
	if windowStart.IsZero() {
		align = raw[0].T.UTC().Unix()
	}

	buckets := map[int64]domain.IndexPoint{}
	for _, p := range raw {
		ts := p.T.UTC().Unix()
		key := (ts-align)/bucketSeconds*bucketSeconds + align
		if ts < align {
			// Integer division truncates toward zero; floor for backfill
			// points that predate the window.
			key = align - ((align-ts+bucketSeconds-1)/bucketSeconds)*bucketSeconds
		}
		buckets[key] = p
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]domain.IndexPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, buckets[k])
	}
	return out
}

// Interpolate fills a sparse series with linearly interpolated points every
// step, adding small deterministic noise seeded from the event id and step
// index for display smoothness. Real points are kept as-is; synthetic points
// are never written back to the history.
func Interpolate(points []domain.IndexPoint, step time.Duration, eventID string) []domain.IndexPoint {
	if len(points) < 2 || step <= 0 {
		return points
	}

	seed := syntheticSeed(eventID)
	out := make([]domain.IndexPoint, 0, len(points))

	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		out = append(out, a)

		gap := b.T.Sub(a.T)
		steps := int(gap / step)
		for s := 1; s < steps; s++ {
			frac := float64(s) / float64(steps)
			t := a.T.Add(time.Duration(s) * step)
			v := a.Value + frac*(b.Value-a.Value)
			// ±0.5 points of seeded jitter, reproducible per (event, step).
			noise := float64((seed+uint64(i)*31+uint64(s)*7)%100)/100.0 - 0.5
			out = append(out, domain.IndexPoint{T: t, Value: round2(v + noise)})
		}
	}
	return append(out, points[len(points)-1])
}
