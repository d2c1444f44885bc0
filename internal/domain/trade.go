package domain

import "time"

// Side is the direction of a bet.
type Side string

const (
	SideUp   Side = "up"
	SideDown Side = "down"
)

// ParseSide validates a raw side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideUp:
		return SideUp, nil
	case SideDown:
		return SideDown, nil
	default:
		return "", ErrInvalidSide
	}
}

// Trade is one immutable row in the append-only bet ledger.
type Trade struct {
	ID             string    `json:"id"`
	EventID        string    `json:"eventId"`
	Side           Side      `json:"side"`
	Amount         float64   `json:"amount"`
	TraderID       string    `json:"traderId,omitempty"`
	ExecutionPrice *float64  `json:"executionPrice,omitempty"` // price of the bought side at trade time, 0..1
	CreatedAt      time.Time `json:"createdAt"`
}

// Position holds the two monotonically increasing accumulators derived from
// the trade ledger for a single event.
type Position struct {
	EventID string  `json:"eventId"`
	NetUp   float64 `json:"netUp"`
	NetDown float64 `json:"netDown"`
}

// Net is the directional imbalance of bets.
func (p Position) Net() float64 {
	return p.NetUp - p.NetDown
}

// TraderTrade is a trade joined with its event, as shown on a profile page.
type TraderTrade struct {
	EventID        string      `json:"eventId"`
	EventName      string      `json:"eventName"`
	Side           Side        `json:"side"`
	Amount         float64     `json:"amount"`
	ExecutionPrice *float64    `json:"executionPrice,omitempty"`
	Status         EventStatus `json:"status"`
	Resolution     *Resolution `json:"resolution"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Profile is a trader's account record.
type Profile struct {
	TraderID    string    `json:"traderId"`
	DisplayName string    `json:"displayName,omitempty"`
	Balance     float64   `json:"balance"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DefaultBalance is granted to every new profile.
const DefaultBalance = 100.0
