package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/attnmarkets/attnd/internal/domain"
)

type stubProfileService struct {
	profile     domain.Profile
	trades      []domain.TraderTrade
	lastTrader  string
	lastDisplay string
	err         error
}

func (s *stubProfileService) Get(ctx context.Context, traderID, displayName string) (domain.Profile, error) {
	s.lastTrader = traderID
	s.lastDisplay = displayName
	return s.profile, s.err
}

func (s *stubProfileService) Trades(ctx context.Context, traderID string) ([]domain.TraderTrade, error) {
	s.lastTrader = traderID
	return s.trades, s.err
}

func (s *stubProfileService) SetDisplayName(ctx context.Context, traderID, displayName string) error {
	s.lastTrader = traderID
	s.lastDisplay = displayName
	return s.err
}

func profileMux(h *ProfileHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profile", h.Get)
	mux.HandleFunc("GET /api/profile/trades", h.Trades)
	mux.HandleFunc("PUT /api/profile/display-name", h.SetDisplayName)
	return mux
}

func TestProfileGetHandler(t *testing.T) {
	svc := &stubProfileService{profile: domain.Profile{TraderID: "trader-1", DisplayName: "alice", Balance: 100}}
	mux := profileMux(NewProfileHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("X-Trader-Id", "trader-1")
	req.Header.Set("X-Display-Name", "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastTrader != "trader-1" || svc.lastDisplay != "alice" {
		t.Errorf("call = %q/%q, want header identity", svc.lastTrader, svc.lastDisplay)
	}
	var p domain.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if p.Balance != 100 {
		t.Errorf("balance = %v", p.Balance)
	}
}

func TestProfileHandlerUnauthorized(t *testing.T) {
	mux := profileMux(NewProfileHandler(&stubProfileService{err: domain.ErrUnauthorized}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProfileTradesHandler(t *testing.T) {
	svc := &stubProfileService{trades: []domain.TraderTrade{{EventID: "ev-1", Side: domain.SideUp, Amount: 10}}}
	mux := profileMux(NewProfileHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/profile/trades", nil)
	req.Header.Set("X-Trader-Id", "trader-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Trades []domain.TraderTrade `json:"trades"`
		Count  int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Count != 1 || body.Trades[0].EventID != "ev-1" {
		t.Errorf("body = %+v", body)
	}
}

func TestSetDisplayNameHandler(t *testing.T) {
	svc := &stubProfileService{}
	mux := profileMux(NewProfileHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPut, "/api/profile/display-name",
		strings.NewReader(`{"display_name":"carol"}`))
	req.Header.Set("X-Trader-Id", "trader-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastDisplay != "carol" {
		t.Errorf("display name = %q, want carol", svc.lastDisplay)
	}
}
