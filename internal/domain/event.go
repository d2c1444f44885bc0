package domain

import (
	"fmt"
	"time"
)

// EventStatus represents the lifecycle state of an attention market event.
type EventStatus string

const (
	StatusProposed EventStatus = "proposed"
	StatusOpen     EventStatus = "open"
	StatusRejected EventStatus = "rejected"
	StatusResolved EventStatus = "resolved"
)

// Resolution is the outcome of a resolved event.
type Resolution string

const (
	ResolutionUp   Resolution = "up"
	ResolutionDown Resolution = "down"
)

// IndexBaseline is the canonical starting value of every attention index.
// The index measures change in attention, not absolute popularity, so every
// window opens at exactly 100.
const IndexBaseline = 100.0

// Event is a short-lived attention market: a topic accrues a public attention
// index over a fixed window; traders bet whether the index ends above or
// below its baseline.
type Event struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       EventStatus `json:"status"`
	WindowStart  time.Time   `json:"windowStart"`
	WindowEnd    time.Time   `json:"windowEnd"`
	IndexStart   float64     `json:"indexStart"`
	IndexCurrent float64     `json:"indexCurrent"`
	Resolution   *Resolution `json:"resolution"`
	Explanation  string      `json:"explanation,omitempty"`
	Config       EventConfig `json:"config"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Expired reports whether the event's trading window has elapsed at the
// given instant. Comparison is done in UTC.
func (e Event) Expired(now time.Time) bool {
	if e.WindowEnd.IsZero() {
		// Unparseable or missing window end is treated as not yet expired so
		// a bad timestamp can never force a resolution.
		return false
	}
	return !e.WindowEnd.UTC().After(now.UTC())
}

// Resolve derives the resolution from the current index versus the baseline.
// A tie resolves down (strict > comparison).
func (e Event) Resolve() Resolution {
	if e.IndexCurrent > e.IndexStart {
		return ResolutionUp
	}
	return ResolutionDown
}

// EventConfig is the structured payload attached to every event: channel
// selection, keyword filters, window metadata, and display copy. It is stored
// as a JSONB column and treated as opaque by the persistence layer.
type EventConfig struct {
	Tools         []string `json:"tools,omitempty"`
	Channels      []string `json:"channels,omitempty"` // legacy display names; Tools wins when both are set
	Keywords      []string `json:"keywords,omitempty"`
	Exclusions    []string `json:"exclusions,omitempty"`
	WindowMinutes int      `json:"window_minutes,omitempty"`
	MarketType    string   `json:"market_type,omitempty"`
	Demo          bool     `json:"demo,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	Description   string   `json:"description,omitempty"`
	Headline      string   `json:"headline,omitempty"`
	Subline       string   `json:"subline,omitempty"`
	LabelUp       string   `json:"label_up,omitempty"`
	LabelDown     string   `json:"label_down,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	RejectReason  string   `json:"reject_reason,omitempty"`
}

// EventPeriods maps period names to window lengths in minutes.
var EventPeriods = map[string]int{
	"1h":  60,
	"8h":  480,
	"24h": 1440,
	"1w":  10080,
}

// CanonicalWindowMinutes lists the market types offered in the propose flow.
var CanonicalWindowMinutes = map[string]int{
	"1h":  60,
	"24h": 1440,
}

// DefaultMarketType is used when a proposal does not name one.
const DefaultMarketType = "1h"

// PeriodMinutes converts a period name to minutes.
func PeriodMinutes(period string) (int, error) {
	m, ok := EventPeriods[period]
	if !ok {
		return 0, fmt.Errorf("%w: invalid period %q", ErrInvalidPeriod, period)
	}
	return m, nil
}

// MarketTypeMinutes returns the window length for a canonical market type,
// defaulting to the 1h window for unknown types.
func MarketTypeMinutes(marketType string) int {
	if m, ok := CanonicalWindowMinutes[marketType]; ok {
		return m
	}
	return 60
}
