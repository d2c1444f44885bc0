package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// fakeProfileStore is an in-memory ProfileStore.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: map[string]domain.Profile{}}
}

func (s *fakeProfileStore) GetOrCreate(ctx context.Context, traderID, displayName string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[traderID]; ok {
		return p, nil
	}
	p := domain.Profile{
		TraderID:    traderID,
		DisplayName: displayName,
		Balance:     domain.DefaultBalance,
		CreatedAt:   time.Now().UTC(),
	}
	s.profiles[traderID] = p
	return p, nil
}

func (s *fakeProfileStore) Balance(ctx context.Context, traderID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[traderID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.Balance, nil
}

func (s *fakeProfileStore) UpdateBalance(ctx context.Context, traderID string, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[traderID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Balance = balance
	s.profiles[traderID] = p
	return nil
}

func (s *fakeProfileStore) UpdateDisplayName(ctx context.Context, traderID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[traderID]
	if !ok {
		return domain.ErrNotFound
	}
	p.DisplayName = displayName
	s.profiles[traderID] = p
	return nil
}

func TestProfileGetCreatesWithStartingBalance(t *testing.T) {
	store := newFakeProfileStore()
	svc := NewProfileService(store, newFakeTradeStore(), testLogger())
	ctx := context.Background()

	p, err := svc.Get(ctx, "trader-1", "alice")
	requireNoError(t, err)
	if p.Balance != domain.DefaultBalance {
		t.Errorf("balance = %v, want %v", p.Balance, domain.DefaultBalance)
	}
	if p.DisplayName != "alice" {
		t.Errorf("display name = %q, want alice", p.DisplayName)
	}

	// Second fetch returns the existing profile untouched.
	again, err := svc.Get(ctx, "trader-1", "bob")
	requireNoError(t, err)
	if again.DisplayName != "alice" {
		t.Errorf("display name = %q, want original", again.DisplayName)
	}
}

func TestProfileRequiresTraderID(t *testing.T) {
	svc := NewProfileService(newFakeProfileStore(), newFakeTradeStore(), testLogger())
	ctx := context.Background()

	if _, err := svc.Get(ctx, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Get err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Trades(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Trades err = %v, want ErrUnauthorized", err)
	}
	if err := svc.SetDisplayName(ctx, "", "x"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("SetDisplayName err = %v, want ErrUnauthorized", err)
	}
}

func TestProfileSetDisplayName(t *testing.T) {
	store := newFakeProfileStore()
	svc := NewProfileService(store, newFakeTradeStore(), testLogger())
	ctx := context.Background()

	_, err := svc.Get(ctx, "trader-1", "")
	requireNoError(t, err)
	requireNoError(t, svc.SetDisplayName(ctx, "trader-1", "carol"))

	p, err := svc.Get(ctx, "trader-1", "")
	requireNoError(t, err)
	if p.DisplayName != "carol" {
		t.Errorf("display name = %q, want carol", p.DisplayName)
	}
}

func TestProfileTrades(t *testing.T) {
	trades := newFakeTradeStore()
	svc := NewProfileService(newFakeProfileStore(), trades, testLogger())
	ctx := context.Background()

	price := 0.5
	requireNoError(t, trades.Record(ctx, domain.Trade{
		ID:             "t1",
		EventID:        "ev-1",
		Side:           domain.SideUp,
		Amount:         10,
		TraderID:       "trader-1",
		ExecutionPrice: &price,
		CreatedAt:      time.Now().UTC(),
	}))

	list, err := svc.Trades(ctx, "trader-1")
	requireNoError(t, err)
	if len(list) != 1 || list[0].EventID != "ev-1" {
		t.Fatalf("trades = %+v, want the recorded one", list)
	}

	empty, err := svc.Trades(ctx, "trader-2")
	requireNoError(t, err)
	if len(empty) != 0 {
		t.Errorf("got %d trades for unknown trader, want 0", len(empty))
	}
}
