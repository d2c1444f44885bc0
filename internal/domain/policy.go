package domain

import "context"

// ReasonabilityResult is the outcome of the initial proposal check.
type ReasonabilityResult struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// AcceptDecision is the outcome of the final accept/reject check on a
// freshly built index.
type AcceptDecision struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// Headline is policy-generated display copy for an event card.
type Headline struct {
	Headline  string `json:"headline"`
	Subline   string `json:"subline"`
	LabelUp   string `json:"label_up"`
	LabelDown string `json:"label_down"`
}

// Policy groups the pluggable decision functions consulted during the event
// lifecycle. Implementations are external collaborators (typically LLM
// backed) and may fail or be absent; callers substitute fixed defaults on any
// error and never depend on which backend answered.
type Policy interface {
	// CheckReasonability decides whether a topic is suitable for an
	// attention market at all.
	CheckReasonability(ctx context.Context, name, sourceURL, description string) (ReasonabilityResult, error)
	// SelectTools builds the event config: which channels to sample and
	// which keywords/exclusions to match.
	SelectTools(ctx context.Context, name, sourceURL, description string, available []Tool, windowMinutes int) (EventConfig, error)
	// DecideAccept makes the final call on a computed initial index.
	DecideAccept(ctx context.Context, name string, indexValue float64, activity Activity) (AcceptDecision, error)
	// Explain produces a human-readable resolution explanation.
	Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []IndexPoint) (string, error)
	// SuggestWindow proposes a window length in minutes for a topic.
	SuggestWindow(ctx context.Context, name, sourceURL, description string) (int, error)
	// Headline generates display copy for the event card.
	Headline(ctx context.Context, name, marketType, sourceURL, description string) (Headline, error)
}

// HolisticEstimator is the alternate index source: one external judgment per
// event instead of the per-channel pipeline. Current is clamped to [0, 200];
// points are historical backfill (strictly before now).
type HolisticEstimator interface {
	BuildIndex(ctx context.Context, name, sourceURL, description string) (current float64, points []IndexPoint, err error)
}

// ImageGenerator produces an optional PNG thumbnail for an event.
type ImageGenerator interface {
	Generate(ctx context.Context, name, headline string) ([]byte, error)
}

// BlobWriter stores an object under a key.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// BlobReader retrieves an object by key.
type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}
