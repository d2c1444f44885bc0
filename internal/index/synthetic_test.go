package index

import (
	"testing"
	"time"
)

func TestSyntheticDeterministic(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(95 * time.Second)

	a := Synthetic("event-1", start, now)
	b := Synthetic("event-1", start, now)
	if a != b {
		t.Fatalf("synthetic index must be reproducible: %v vs %v", a, b)
	}
}

func TestSyntheticSeedVariesByEvent(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(45 * time.Second)

	a := Synthetic("event-1", start, now)
	b := Synthetic("event-2", start, now)
	if a == b {
		t.Fatalf("different events should diverge at the same instant, both %v", a)
	}
}

func TestSyntheticBounds(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for s := 0; s < 300; s += 7 {
		v := Synthetic("bounds-check", start, start.Add(time.Duration(s)*time.Second))
		if v < 85 || v > 115 {
			t.Fatalf("synthetic index out of bounds at t+%ds: %v", s, v)
		}
	}
}

func TestSyntheticBeforeWindowStart(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := Synthetic("event-1", start, start.Add(-time.Minute))
	if v != 100.0 {
		t.Fatalf("before the window the index is the baseline, got %v", v)
	}
}
