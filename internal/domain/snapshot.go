package domain

import "time"

// Activity maps a channel name to the most recently observed raw activity
// score for an event. It is the delta baseline for the next index
// computation, never ground truth; losing it only re-baselines the index.
type Activity map[string]float64

// IndexPoint is one point in the authoritative, append-only index history.
type IndexPoint struct {
	T     time.Time `json:"t"`
	Value float64   `json:"index"`
}

// Comment is a user comment attached to an event.
type Comment struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	TraderID    string    `json:"traderId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}
