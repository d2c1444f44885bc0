package index

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"
)

// Synthetic computes the index for a demo event: mean-reverting waves around
// 100 with seeded pseudo-noise, bounded roughly 85-115. It is a pure
// function of (eventID, windowStart, now) so demo charts are reproducible
// and independent of trades and external signals.
func Synthetic(eventID string, windowStart, now time.Time) float64 {
	elapsed := now.UTC().Sub(windowStart.UTC()).Seconds()
	if elapsed < 0 {
		return 100.0
	}

	seed := syntheticSeed(eventID)

	// Scale so a couple of minutes gives several momentum cycles.
	t := elapsed / 30.0
	wave1 := 6.0 * math.Sin(t*1.2)
	wave2 := 4.0 * math.Sin(t*0.5+float64(seed%100)/50.0)
	noise := float64((seed*17+uint64(t)*31)%100)/100.0*4.0 - 2.0

	delta := wave1 + wave2 + noise
	delta = math.Max(-15.0, math.Min(15.0, delta))
	return round2(100.0 + delta)
}

// syntheticSeed derives a stable seed from the event id.
func syntheticSeed(eventID string) uint64 {
	h := sha256.Sum256([]byte(eventID))
	return uint64(binary.BigEndian.Uint32(h[:4]))
}
