// Package policy implements the pluggable decision functions consulted in
// the event lifecycle: reasonability checking, tool selection, accept
// decisions, resolution explanations, and display copy. The core only
// depends on the domain.Policy contract; every function has a mandatory
// fixed default that is substituted when the configured backend is absent
// or failing.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/attnmarkets/attnd/internal/domain"
)

// DefaultExclusions filters out generic noise for ambiguous topic names.
var DefaultExclusions = []string{"mouse cursor", "ui cursor", "cursor pointer"}

// Fallback is the mandatory default policy. Every decision is a fixed,
// documented constant: proposals pass the reasonability check, get the
// default channel set with keywords derived from the topic name, and are
// accepted; explanations and headlines are templated.
type Fallback struct{}

// NewFallback creates the default policy.
func NewFallback() *Fallback {
	return &Fallback{}
}

// CheckReasonability always passes: without a verification backend no topic
// can be rejected for unreasonability.
func (f *Fallback) CheckReasonability(ctx context.Context, name, sourceURL, description string) (domain.ReasonabilityResult, error) {
	return domain.ReasonabilityResult{Pass: true, Reason: "No verification backend configured; check skipped."}, nil
}

// SelectTools builds the default config: all default channels, keywords
// derived from the topic name.
func (f *Fallback) SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) (domain.EventConfig, error) {
	return domain.EventConfig{
		Tools:         append([]string(nil), domain.DefaultToolIDs...),
		Channels:      []string{"Hacker News", "Reddit"},
		Keywords:      KeywordsFromName(name),
		Exclusions:    append([]string(nil), DefaultExclusions...),
		WindowMinutes: windowMinutes,
		SourceURL:     sourceURL,
		Description:   description,
	}, nil
}

// DecideAccept accepts by default.
func (f *Fallback) DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) (domain.AcceptDecision, error) {
	return domain.AcceptDecision{Accept: true, Reason: "No decision backend configured; accepted by default."}, nil
}

// Explain produces the templated resolution explanation.
func (f *Fallback) Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) (string, error) {
	direction := "fell"
	if indexEnd > indexStart {
		direction = "rose"
	}
	return fmt.Sprintf("Attention %s (index %g -> %g).", direction, indexStart, indexEnd), nil
}

// SuggestWindow suggests the canonical 1h window.
func (f *Fallback) SuggestWindow(ctx context.Context, name, sourceURL, description string) (int, error) {
	return 60, nil
}

// Headline produces templated display copy.
func (f *Fallback) Headline(ctx context.Context, name, marketType, sourceURL, description string) (domain.Headline, error) {
	name = strings.TrimSpace(name)
	h := domain.Headline{
		Headline:  fmt.Sprintf("Is %s gaining momentum?", name),
		Subline:   "Attention change · next 60 min",
		LabelUp:   "Heating up",
		LabelDown: "Cooling down",
	}
	if marketType == "24h" {
		h.Headline = fmt.Sprintf("Will %s stay hot?", name)
		h.Subline = "Sustained attention · next 24h"
	}
	return h, nil
}

// KeywordsFromName derives search keywords from a topic name: the lowercase
// name itself plus up to five of its words longer than two characters.
func KeywordsFromName(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	seen := map[string]bool{lower: true}
	keywords := []string{lower}
	for _, w := range strings.Fields(strings.ReplaceAll(lower, "-", " ")) {
		if len(w) <= 2 || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) >= 6 {
			break
		}
	}
	return keywords
}
