package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEventStore is an in-memory EventStore.
type fakeEventStore struct {
	mu     sync.Mutex
	events map[string]domain.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: map[string]domain.Event{}}
}

func (s *fakeEventStore) Create(ctx context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *fakeEventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *fakeEventStore) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Name != "" && e.Name != f.Name {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeEventStore) UpdateIndex(ctx context.Context, id string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.IndexCurrent = value
	s.events[id] = e
	return nil
}

func (s *fakeEventStore) Accept(ctx context.Context, id string, windowStart, windowEnd time.Time, indexStart, indexCurrent float64, cfg domain.EventConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = domain.StatusOpen
	e.WindowStart = windowStart
	e.WindowEnd = windowEnd
	e.IndexStart = indexStart
	e.IndexCurrent = indexCurrent
	e.Config = cfg
	s.events[id] = e
	return nil
}

func (s *fakeEventStore) Reject(ctx context.Context, id string, cfg domain.EventConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = domain.StatusRejected
	e.Config = cfg
	s.events[id] = e
	return nil
}

func (s *fakeEventStore) Resolve(ctx context.Context, id string, r domain.Resolution, explanation string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.Status != domain.StatusOpen {
		return false, nil
	}
	e.Status = domain.StatusResolved
	e.Resolution = &r
	e.Explanation = explanation
	s.events[id] = e
	return true, nil
}

func (s *fakeEventStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	delete(s.events, id)
	return true, nil
}

// byStatus returns all events in the given status, ordered by creation.
func (s *fakeEventStore) byStatus(status domain.EventStatus) []domain.Event {
	out, _ := s.List(context.Background(), domain.EventFilter{Status: status})
	return out
}

// fakeSnapshotStore is an in-memory SnapshotStore.
type fakeSnapshotStore struct {
	mu     sync.Mutex
	points map[string][]domain.IndexPoint
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{points: map[string][]domain.IndexPoint{}}
}

func (s *fakeSnapshotStore) Append(ctx context.Context, eventID string, p domain.IndexPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[eventID] = append(s.points[eventID], p)
	return nil
}

func (s *fakeSnapshotStore) AppendBatch(ctx context.Context, eventID string, points []domain.IndexPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[eventID] = append(s.points[eventID], points...)
	return nil
}

func (s *fakeSnapshotStore) History(ctx context.Context, eventID string) ([]domain.IndexPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.IndexPoint(nil), s.points[eventID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].T.Before(out[j].T) })
	return out, nil
}

// fakeTradeStore is an in-memory TradeStore that also maintains positions.
type fakeTradeStore struct {
	mu        sync.Mutex
	trades    []domain.Trade
	positions map[string]domain.Position
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{positions: map[string]domain.Position{}}
}

func (s *fakeTradeStore) Record(ctx context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	p := s.positions[t.EventID]
	p.EventID = t.EventID
	if t.Side == domain.SideUp {
		p.NetUp += t.Amount
	} else {
		p.NetDown += t.Amount
	}
	s.positions[t.EventID] = p
	return nil
}

func (s *fakeTradeStore) Volume(ctx context.Context, eventID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, t := range s.trades {
		if t.EventID == eventID {
			total += t.Amount
		}
	}
	return total, nil
}

func (s *fakeTradeStore) ListByTrader(ctx context.Context, traderID string) ([]domain.TraderTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TraderTrade
	for _, t := range s.trades {
		if t.TraderID == traderID {
			out = append(out, domain.TraderTrade{
				EventID:        t.EventID,
				Side:           t.Side,
				Amount:         t.Amount,
				ExecutionPrice: t.ExecutionPrice,
				CreatedAt:      t.CreatedAt,
			})
		}
	}
	return out, nil
}

// Get implements PositionStore over the same accumulators Record maintains.
func (s *fakeTradeStore) Get(ctx context.Context, eventID string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[eventID]
	if !ok {
		return domain.Position{EventID: eventID}, nil
	}
	return p, nil
}

// scriptedServicePolicy implements the Policy interface consulted by
// EventService with fixed answers.
type scriptedServicePolicy struct {
	reasonable   bool
	reasonReason string
	accept       bool
	acceptReason string
	windowMins   int
}

func passingPolicy() *scriptedServicePolicy {
	return &scriptedServicePolicy{reasonable: true, accept: true, windowMins: 60}
}

func (p *scriptedServicePolicy) CheckReasonability(ctx context.Context, name, sourceURL, description string) domain.ReasonabilityResult {
	return domain.ReasonabilityResult{Pass: p.reasonable, Reason: p.reasonReason}
}

func (p *scriptedServicePolicy) SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) domain.EventConfig {
	return domain.EventConfig{
		Channels: []string{"Hacker News", "Reddit"},
		Keywords: []string{name},
	}
}

func (p *scriptedServicePolicy) DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) domain.AcceptDecision {
	return domain.AcceptDecision{Accept: p.accept, Reason: p.acceptReason}
}

func (p *scriptedServicePolicy) Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) string {
	return "scripted explanation"
}

func (p *scriptedServicePolicy) SuggestWindow(ctx context.Context, name, sourceURL, description string) int {
	return p.windowMins
}

func (p *scriptedServicePolicy) Headline(ctx context.Context, name, marketType, sourceURL, description string) domain.Headline {
	return domain.Headline{Headline: "Is " + name + " gaining momentum?", LabelUp: "Up", LabelDown: "Down"}
}

// fakeActivityCache is a minimal in-memory ActivityCache.
type fakeActivityCache struct {
	mu      sync.Mutex
	entries map[string]domain.Activity
}

func newFakeActivityCache() *fakeActivityCache {
	return &fakeActivityCache{entries: map[string]domain.Activity{}}
}

func (c *fakeActivityCache) Get(ctx context.Context, eventID string) (domain.Activity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	act, ok := c.entries[eventID]
	return act, ok, nil
}

func (c *fakeActivityCache) Set(ctx context.Context, eventID string, act domain.Activity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[eventID] = act
	return nil
}

func (c *fakeActivityCache) Delete(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
	return nil
}

// recordingBus captures published payloads per channel.
type recordingBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{messages: map[string][][]byte{}}
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *recordingBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

// stubFetcher returns a fixed activity score.
type stubFetcher struct {
	score float64
}

func (f stubFetcher) Fetch(ctx context.Context, keywords, exclusions []string) float64 {
	return f.score
}

// stubRegistry resolves every default tool and channel to the same fetcher.
type stubRegistry struct {
	score float64
}

func (r stubRegistry) Lookup(toolID string) (index.Fetcher, bool) {
	for _, id := range domain.DefaultToolIDs {
		if id == toolID {
			return stubFetcher{score: r.score}, true
		}
	}
	return nil, false
}

func (r stubRegistry) LookupName(channelName string) (index.Fetcher, bool) {
	switch channelName {
	case "Hacker News", "Reddit":
		return stubFetcher{score: r.score}, true
	}
	return nil, false
}

func newStubEngine(score float64) *index.Engine {
	return index.NewEngine(stubRegistry{score: score}, time.Second, testLogger())
}

// stubHolistic returns a fixed estimate with optional backfill points.
type stubHolistic struct {
	value  float64
	points []domain.IndexPoint
	err    error
}

func (h stubHolistic) BuildIndex(ctx context.Context, name, sourceURL, description string) (float64, []domain.IndexPoint, error) {
	return h.value, h.points, h.err
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
