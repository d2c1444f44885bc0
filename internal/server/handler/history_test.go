package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

type stubHistoryService struct {
	raw          []domain.IndexPoint
	aggregated   []domain.IndexPoint
	lastInterval string
	err          error
}

func (s *stubHistoryService) Raw(ctx context.Context, eventID string) ([]domain.IndexPoint, error) {
	return s.raw, s.err
}

func (s *stubHistoryService) Aggregated(ctx context.Context, eventID, interval string) ([]domain.IndexPoint, error) {
	s.lastInterval = interval
	return s.aggregated, s.err
}

func historyMux(h *HistoryHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/{id}/history", h.Get)
	return mux
}

func TestHistoryHandlerRaw(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := &stubHistoryService{raw: []domain.IndexPoint{{T: now, Value: 100}, {T: now.Add(time.Minute), Value: 101.5}}}
	mux := historyMux(NewHistoryHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/ev-1/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		EventID  string              `json:"event_id"`
		Interval string              `json:"interval"`
		Points   []domain.IndexPoint `json:"points"`
		Count    int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.EventID != "ev-1" || body.Interval != "" || body.Count != 2 {
		t.Errorf("body = %+v", body)
	}
	if svc.lastInterval != "" {
		t.Error("aggregated path taken without an interval")
	}
}

func TestHistoryHandlerAggregated(t *testing.T) {
	svc := &stubHistoryService{aggregated: []domain.IndexPoint{{Value: 104}}}
	mux := historyMux(NewHistoryHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/ev-1/history?interval=1h", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastInterval != "1h" {
		t.Errorf("interval = %q, want 1h", svc.lastInterval)
	}
}

func TestHistoryHandlerInvalidInterval(t *testing.T) {
	mux := historyMux(NewHistoryHandler(&stubHistoryService{err: domain.ErrInvalidPeriod}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/ev-1/history?interval=5s", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
