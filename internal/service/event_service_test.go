package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

type eventFixture struct {
	events    *fakeEventStore
	snapshots *fakeSnapshotStore
	trades    *fakeTradeStore
	cache     *fakeActivityCache
	bus       *recordingBus
	policy    *scriptedServicePolicy
	svc       *EventService
}

func newEventFixture(score float64, pol *scriptedServicePolicy, holistic domain.HolisticEstimator) *eventFixture {
	f := &eventFixture{
		events:    newFakeEventStore(),
		snapshots: newFakeSnapshotStore(),
		trades:    newFakeTradeStore(),
		cache:     newFakeActivityCache(),
		bus:       newRecordingBus(),
		policy:    pol,
	}
	f.svc = NewEventService(EventServiceDeps{
		Events:      f.events,
		Snapshots:   f.snapshots,
		Positions:   f.trades,
		Trades:      f.trades,
		Activity:    f.cache,
		Bus:         f.bus,
		Engine:      newStubEngine(score),
		Policy:      pol,
		Holistic:    holistic,
		MinTraction: 1.0,
		Logger:      testLogger(),
	})
	return f
}

func TestProposeOpensMarket(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{
		Name:       "Rust 2.0",
		MarketType: "24h",
	})
	requireNoError(t, err)

	if e.Status != domain.StatusOpen {
		t.Fatalf("status = %q, want open (reason %q)", e.Status, e.Config.RejectReason)
	}
	if e.IndexStart != domain.IndexBaseline || e.IndexCurrent != domain.IndexBaseline {
		t.Errorf("index start/current = %v/%v, want 100/100", e.IndexStart, e.IndexCurrent)
	}
	if got := e.WindowEnd.Sub(e.WindowStart); got != 24*time.Hour {
		t.Errorf("window = %v, want 24h", got)
	}
	if e.Config.MarketType != "24h" || e.Config.WindowMinutes != 1440 {
		t.Errorf("config window = %q/%d, want 24h/1440", e.Config.MarketType, e.Config.WindowMinutes)
	}
	if e.Config.Headline == "" {
		t.Error("headline not filled from policy")
	}

	stored, err := f.events.GetByID(context.Background(), e.ID)
	requireNoError(t, err)
	if stored.Status != domain.StatusOpen {
		t.Errorf("persisted status = %q, want open", stored.Status)
	}

	// Synthetic backfill plus the initial snapshot, ending at the baseline.
	points, _ := f.snapshots.History(context.Background(), e.ID)
	if len(points) < 5 {
		t.Fatalf("got %d snapshot points, want backfill plus initial", len(points))
	}
	if last := points[len(points)-1]; last.Value != domain.IndexBaseline {
		t.Errorf("last snapshot value = %v, want 100", last.Value)
	}

	if _, ok, _ := f.cache.Get(context.Background(), e.ID); !ok {
		t.Error("activity cache not seeded")
	}
	if f.bus.count(domain.ChannelEvents) != 1 {
		t.Errorf("event_opened messages = %d, want 1", f.bus.count(domain.ChannelEvents))
	}
}

func TestProposeNameRequired(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	_, err := f.svc.Propose(context.Background(), ProposeRequest{})
	if !errors.Is(err, domain.ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
}

func TestProposePeriodWindow(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Zig", Period: "8h"})
	requireNoError(t, err)
	if got := e.WindowEnd.Sub(e.WindowStart); got != 8*time.Hour {
		t.Errorf("window = %v, want 8h", got)
	}
	if e.Config.MarketType != "8h" {
		t.Errorf("market type = %q, want 8h", e.Config.MarketType)
	}
}

func TestProposeInvalidPeriod(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	_, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Zig", Period: "3h"})
	if !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestProposeUnreasonableIsEphemeral(t *testing.T) {
	pol := passingPolicy()
	pol.reasonable = false
	pol.reasonReason = "too vague to measure"
	f := newEventFixture(5, pol, nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "stuff"})
	requireNoError(t, err)

	if e.Status != domain.StatusRejected {
		t.Fatalf("status = %q, want rejected", e.Status)
	}
	if e.Config.RejectReason != "too vague to measure" {
		t.Errorf("reject reason = %q", e.Config.RejectReason)
	}
	// Rejections before persistence leave no row behind.
	if all, _ := f.events.List(context.Background(), domain.EventFilter{}); len(all) != 0 {
		t.Errorf("store holds %d events, want 0", len(all))
	}
}

func TestProposeDecisionRejectIsPersisted(t *testing.T) {
	pol := passingPolicy()
	pol.accept = false
	pol.acceptReason = "no sustained signal"
	f := newEventFixture(5, pol, nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Obscure Topic"})
	requireNoError(t, err)

	if e.Status != domain.StatusRejected {
		t.Fatalf("status = %q, want rejected", e.Status)
	}
	stored, err := f.events.GetByID(context.Background(), e.ID)
	requireNoError(t, err)
	if stored.Status != domain.StatusRejected || stored.Config.RejectReason != "no sustained signal" {
		t.Errorf("persisted %q/%q, want rejected with reason", stored.Status, stored.Config.RejectReason)
	}
}

func TestProposeTractionGate(t *testing.T) {
	// All channels sample zero activity, below the traction floor.
	f := newEventFixture(0, passingPolicy(), nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Ghost Topic"})
	requireNoError(t, err)

	if e.Status != domain.StatusRejected {
		t.Fatalf("status = %q, want rejected", e.Status)
	}
	if e.Config.RejectReason != "insufficient traction across activity channels" {
		t.Errorf("reject reason = %q", e.Config.RejectReason)
	}
	stored, _ := f.events.GetByID(context.Background(), e.ID)
	if stored.Status != domain.StatusRejected {
		t.Errorf("persisted status = %q, want rejected", stored.Status)
	}
}

func TestProposeDemoOpensImmediately(t *testing.T) {
	// Zero activity would fail the traction gate; demo markets skip it.
	f := newEventFixture(0, passingPolicy(), nil)

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Demo Topic", Demo: true})
	requireNoError(t, err)

	if e.Status != domain.StatusOpen {
		t.Fatalf("status = %q, want open", e.Status)
	}
	if got := e.WindowEnd.Sub(e.WindowStart); got != demoWindow {
		t.Errorf("window = %v, want %v", got, demoWindow)
	}
	// No backfill for demo markets, only the opening snapshot.
	points, _ := f.snapshots.History(context.Background(), e.ID)
	if len(points) != 1 {
		t.Errorf("got %d snapshot points, want 1", len(points))
	}
	if _, ok, _ := f.cache.Get(context.Background(), e.ID); ok {
		t.Error("demo market should not seed the activity cache")
	}
}

func TestProposeHolisticEstimate(t *testing.T) {
	backfill := []domain.IndexPoint{
		{T: time.Now().UTC().Add(-2 * time.Hour), Value: 96},
		{T: time.Now().UTC().Add(-time.Hour), Value: 103},
	}
	// Zero channel activity: the holistic path must bypass the traction gate.
	f := newEventFixture(0, passingPolicy(), stubHolistic{value: 250, points: backfill})

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Holistic Topic"})
	requireNoError(t, err)

	if e.Status != domain.StatusOpen {
		t.Fatalf("status = %q, want open (reason %q)", e.Status, e.Config.RejectReason)
	}
	if e.IndexCurrent != 200 {
		t.Errorf("index = %v, want holistic estimate clamped to 200", e.IndexCurrent)
	}
	act, ok, _ := f.cache.Get(context.Background(), e.ID)
	if !ok || act["holistic"] != 200 {
		t.Errorf("activity cache = %v/%v, want holistic entry", act, ok)
	}
	// Estimator backfill is stored verbatim, plus the opening snapshot.
	points, _ := f.snapshots.History(context.Background(), e.ID)
	if len(points) != 3 {
		t.Errorf("got %d snapshot points, want 3", len(points))
	}
}

func TestProposeHolisticFailureFallsBackToChannels(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), stubHolistic{err: errors.New("estimator down")})

	e, err := f.svc.Propose(context.Background(), ProposeRequest{Name: "Fallback Topic"})
	requireNoError(t, err)
	if e.Status != domain.StatusOpen {
		t.Fatalf("status = %q, want open via channel pipeline", e.Status)
	}
	if e.IndexCurrent != domain.IndexBaseline {
		t.Errorf("index = %v, want baseline", e.IndexCurrent)
	}
}

func seedOpenEvent(f *eventFixture, id string, indexCurrent float64, windowEnd time.Time, demo bool) domain.Event {
	e := domain.Event{
		ID:           id,
		Name:         "Seeded Topic",
		Status:       domain.StatusOpen,
		WindowStart:  windowEnd.Add(-time.Hour),
		WindowEnd:    windowEnd,
		IndexStart:   domain.IndexBaseline,
		IndexCurrent: indexCurrent,
		Config: domain.EventConfig{
			Channels:      []string{"Hacker News", "Reddit"},
			Keywords:      []string{"seeded"},
			WindowMinutes: 60,
			MarketType:    "1h",
			Demo:          demo,
		},
		CreatedAt: windowEnd.Add(-time.Hour),
	}
	f.events.Create(context.Background(), e)
	return e
}

func TestForceResolveUpAndReopen(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)
	past := time.Now().UTC().Add(-time.Minute)
	e := seedOpenEvent(f, "ev-up", 104.5, past, false)

	resolved, err := f.svc.ForceResolve(context.Background(), e.ID)
	requireNoError(t, err)

	if resolved.Status != domain.StatusResolved {
		t.Fatalf("status = %q, want resolved", resolved.Status)
	}
	if resolved.Resolution == nil || *resolved.Resolution != domain.ResolutionUp {
		t.Errorf("resolution = %v, want up", resolved.Resolution)
	}
	if resolved.Explanation == "" {
		t.Error("explanation missing")
	}

	// Non-demo markets reopen under the same topic with a fresh window.
	open := f.events.byStatus(domain.StatusOpen)
	if len(open) != 1 {
		t.Fatalf("got %d open events after resolve, want 1 successor", len(open))
	}
	next := open[0]
	if next.ID == e.ID || next.Name != e.Name {
		t.Errorf("successor = %q/%q, want new id with same name", next.ID, next.Name)
	}
	if next.IndexStart != domain.IndexBaseline {
		t.Errorf("successor baseline = %v, want 100", next.IndexStart)
	}

	if f.bus.count(domain.ChannelResolutions) != 1 {
		t.Errorf("resolution messages = %d, want 1", f.bus.count(domain.ChannelResolutions))
	}
}

func TestResolveTieGoesDownWithoutReopen(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)
	past := time.Now().UTC().Add(-time.Minute)
	e := seedOpenEvent(f, "ev-tie", domain.IndexBaseline, past, true)

	resolved, err := f.svc.ResolveExpired(context.Background(), e)
	requireNoError(t, err)

	if resolved.Resolution == nil || *resolved.Resolution != domain.ResolutionDown {
		t.Errorf("resolution = %v, want down on a tie", resolved.Resolution)
	}
	// Demo markets do not recur.
	if open := f.events.byStatus(domain.StatusOpen); len(open) != 0 {
		t.Errorf("got %d open events, want 0", len(open))
	}
}

func TestResolveLoserOfRaceReturnsUnchanged(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)
	past := time.Now().UTC().Add(-time.Minute)
	e := seedOpenEvent(f, "ev-race", 97, past, true)

	first, err := f.svc.ResolveExpired(context.Background(), e)
	requireNoError(t, err)
	if first.Status != domain.StatusResolved {
		t.Fatalf("first resolve status = %q", first.Status)
	}

	// Second invocation with the stale open snapshot loses the store race.
	second, err := f.svc.ResolveExpired(context.Background(), e)
	requireNoError(t, err)
	if second.Status != domain.StatusOpen {
		t.Errorf("loser status = %q, want the event returned unchanged", second.Status)
	}
	if f.bus.count(domain.ChannelResolutions) != 1 {
		t.Errorf("resolution messages = %d, want 1", f.bus.count(domain.ChannelResolutions))
	}
}

func TestForceResolveGuards(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	future := time.Now().UTC().Add(time.Hour)
	stillOpen := seedOpenEvent(f, "ev-open", 101, future, true)
	if _, err := f.svc.ForceResolve(context.Background(), stillOpen.ID); !errors.Is(err, domain.ErrWindowNotElapsed) {
		t.Errorf("err = %v, want ErrWindowNotElapsed", err)
	}

	rejected := stillOpen
	rejected.ID = "ev-rejected"
	rejected.Status = domain.StatusRejected
	f.events.Create(context.Background(), rejected)
	if _, err := f.svc.ForceResolve(context.Background(), rejected.ID); !errors.Is(err, domain.ErrEventNotOpen) {
		t.Errorf("err = %v, want ErrEventNotOpen", err)
	}

	if _, err := f.svc.ForceResolve(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetAndListWithPrices(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)
	e := seedOpenEvent(f, "ev-prices", 101, time.Now().UTC().Add(time.Hour), false)

	d, err := f.svc.Get(context.Background(), e.ID)
	requireNoError(t, err)
	if d.PriceUp != 0.5 || d.PriceDown != 0.5 {
		t.Errorf("prices = %v/%v, want 0.5/0.5 with no trades", d.PriceUp, d.PriceDown)
	}
	if d.Volume != 0 {
		t.Errorf("volume = %v, want 0", d.Volume)
	}

	list, err := f.svc.List(context.Background(), domain.EventFilter{Status: domain.StatusOpen})
	requireNoError(t, err)
	if len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("list = %d events, want the seeded one", len(list))
	}
}

func TestDeleteEvent(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)
	e := seedOpenEvent(f, "ev-del", 101, time.Now().UTC().Add(time.Hour), false)

	requireNoError(t, f.svc.Delete(context.Background(), e.ID))
	if _, err := f.events.GetByID(context.Background(), e.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("event still present after delete")
	}

	if err := f.svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSuggestWindowPassThrough(t *testing.T) {
	pol := passingPolicy()
	pol.windowMins = 1440
	f := newEventFixture(5, pol, nil)

	if got := f.svc.SuggestWindow(context.Background(), "Topic", "", ""); got != 1440 {
		t.Errorf("suggested window = %d, want 1440", got)
	}
}

func TestImageWithoutBlobStore(t *testing.T) {
	f := newEventFixture(5, passingPolicy(), nil)

	if _, _, err := f.svc.Image(context.Background(), "ev"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
