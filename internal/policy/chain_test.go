package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingPolicy errors on every call.
type failingPolicy struct{}

var errBackend = errors.New("backend down")

func (failingPolicy) CheckReasonability(ctx context.Context, name, sourceURL, description string) (domain.ReasonabilityResult, error) {
	return domain.ReasonabilityResult{}, errBackend
}

func (failingPolicy) SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) (domain.EventConfig, error) {
	return domain.EventConfig{}, errBackend
}

func (failingPolicy) DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) (domain.AcceptDecision, error) {
	return domain.AcceptDecision{}, errBackend
}

func (failingPolicy) Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) (string, error) {
	return "", errBackend
}

func (failingPolicy) SuggestWindow(ctx context.Context, name, sourceURL, description string) (int, error) {
	return 0, errBackend
}

func (failingPolicy) Headline(ctx context.Context, name, marketType, sourceURL, description string) (domain.Headline, error) {
	return domain.Headline{}, errBackend
}

// scriptedPolicy returns fixed answers.
type scriptedPolicy struct {
	failingPolicy
	reject        bool
	suggestedMins int
}

func (p scriptedPolicy) CheckReasonability(ctx context.Context, name, sourceURL, description string) (domain.ReasonabilityResult, error) {
	if p.reject {
		return domain.ReasonabilityResult{Pass: false, Reason: "too vague"}, nil
	}
	return domain.ReasonabilityResult{Pass: true}, nil
}

func (p scriptedPolicy) SuggestWindow(ctx context.Context, name, sourceURL, description string) (int, error) {
	return p.suggestedMins, nil
}

func TestChainWithoutPrimary(t *testing.T) {
	c := NewChain(nil, time.Second, testLogger())
	ctx := context.Background()

	if r := c.CheckReasonability(ctx, "Topic", "", ""); !r.Pass {
		t.Fatal("absent backend must pass reasonability")
	}
	if d := c.DecideAccept(ctx, "Topic", 100, nil); !d.Accept {
		t.Fatal("absent backend must accept")
	}
	cfg := c.SelectTools(ctx, "Rust Language", "", "", domain.AvailableTools(), 60)
	if len(cfg.Tools) == 0 {
		t.Fatal("default config must select the default channels")
	}
	if len(cfg.Keywords) == 0 || cfg.Keywords[0] != "rust language" {
		t.Fatalf("keywords must derive from the name, got %v", cfg.Keywords)
	}
	if m := c.SuggestWindow(ctx, "Topic", "", ""); m != 60 {
		t.Fatalf("default window is 60 minutes, got %d", m)
	}
}

func TestChainPrimaryFailureFallsBack(t *testing.T) {
	c := NewChain(failingPolicy{}, time.Second, testLogger())
	ctx := context.Background()

	if r := c.CheckReasonability(ctx, "Topic", "", ""); !r.Pass {
		t.Fatal("failing backend must fall back to pass")
	}
	if d := c.DecideAccept(ctx, "Topic", 100, nil); !d.Accept {
		t.Fatal("failing backend must fall back to accept")
	}
	if s := c.Explain(ctx, "Topic", 100, 104.5, nil); !strings.Contains(s, "rose") {
		t.Fatalf("fallback explanation must describe direction, got %q", s)
	}
	if h := c.Headline(ctx, "Topic", "1h", "", ""); h.Headline == "" || h.LabelUp == "" {
		t.Fatalf("fallback headline must be fully templated, got %+v", h)
	}
}

func TestChainPrimaryAnswerWins(t *testing.T) {
	c := NewChain(scriptedPolicy{reject: true}, time.Second, testLogger())

	r := c.CheckReasonability(context.Background(), "Topic", "", "")
	if r.Pass {
		t.Fatal("primary rejection must pass through the chain")
	}
	if r.Reason != "too vague" {
		t.Fatalf("got %q", r.Reason)
	}
}

func TestChainSuggestWindowClamped(t *testing.T) {
	cases := []struct {
		suggested, want int
	}{
		{30, 60},
		{60, 60},
		{720, 60},
		{1440, 1440},
		{99999, 1440},
	}
	for _, tc := range cases {
		c := NewChain(scriptedPolicy{suggestedMins: tc.suggested}, time.Second, testLogger())
		if got := c.SuggestWindow(context.Background(), "Topic", "", ""); got != tc.want {
			t.Errorf("suggest %d: got %d, want %d", tc.suggested, got, tc.want)
		}
	}
}

func TestFallbackExplainDirection(t *testing.T) {
	f := NewFallback()
	s, err := f.Explain(context.Background(), "Topic", 100, 99, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "fell") {
		t.Fatalf("got %q", s)
	}
}

func TestFallbackHeadlineByMarketType(t *testing.T) {
	f := NewFallback()

	h1, _ := f.Headline(context.Background(), "Rust", "1h", "", "")
	if !strings.Contains(h1.Headline, "Rust") || !strings.Contains(h1.Subline, "60 min") {
		t.Fatalf("got %+v", h1)
	}

	h24, _ := f.Headline(context.Background(), "Rust", "24h", "", "")
	if !strings.Contains(h24.Subline, "24h") {
		t.Fatalf("got %+v", h24)
	}
}

func TestKeywordsFromName(t *testing.T) {
	kw := KeywordsFromName("An AI Rust-Lang Project")
	if kw[0] != "an ai rust-lang project" {
		t.Fatalf("first keyword must be the full lowercase name, got %q", kw[0])
	}
	found := map[string]bool{}
	for _, k := range kw {
		found[k] = true
	}
	if !found["rust"] || !found["lang"] || !found["project"] {
		t.Fatalf("expected word keywords, got %v", kw)
	}
	if found["an"] || found["ai"] {
		t.Fatal("words of two characters or fewer must be skipped")
	}
}
