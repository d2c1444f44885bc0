package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubEventService scripts the EventService interface for handler tests.
type stubEventService struct {
	proposed  domain.Event
	detail    service.Detail
	list      []service.Detail
	resolved  domain.Event
	window    int
	image     []byte
	imageType string
	err       error
}

func (s *stubEventService) Propose(ctx context.Context, req service.ProposeRequest) (domain.Event, error) {
	return s.proposed, s.err
}

func (s *stubEventService) Get(ctx context.Context, id string) (service.Detail, error) {
	return s.detail, s.err
}

func (s *stubEventService) List(ctx context.Context, f domain.EventFilter) ([]service.Detail, error) {
	return s.list, s.err
}

func (s *stubEventService) ForceResolve(ctx context.Context, id string) (domain.Event, error) {
	return s.resolved, s.err
}

func (s *stubEventService) Delete(ctx context.Context, id string) error {
	return s.err
}

func (s *stubEventService) SuggestWindow(ctx context.Context, name, sourceURL, description string) int {
	return s.window
}

func (s *stubEventService) Image(ctx context.Context, id string) ([]byte, string, error) {
	return s.image, s.imageType, s.err
}

// eventMux mounts the handler on the routes the server uses.
func eventMux(h *EventHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events", h.Propose)
	mux.HandleFunc("GET /api/events", h.List)
	mux.HandleFunc("POST /api/events/suggest-window", h.SuggestWindow)
	mux.HandleFunc("GET /api/events/{id}", h.Get)
	mux.HandleFunc("GET /api/events/{id}/image", h.Image)
	mux.HandleFunc("POST /api/events/{id}/resolve", h.Resolve)
	mux.HandleFunc("DELETE /api/events/{id}", h.Delete)
	return mux
}

func TestProposeHandlerCreated(t *testing.T) {
	svc := &stubEventService{proposed: domain.Event{ID: "ev-1", Name: "Rust", Status: domain.StatusOpen}}
	mux := eventMux(NewEventHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"name":"Rust"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var e domain.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if e.ID != "ev-1" || e.Status != domain.StatusOpen {
		t.Errorf("event = %+v", e)
	}
}

func TestProposeHandlerRejectedIsOK(t *testing.T) {
	svc := &stubEventService{proposed: domain.Event{
		ID:     "ev-1",
		Status: domain.StatusRejected,
		Config: domain.EventConfig{RejectReason: "too vague"},
	}}
	mux := eventMux(NewEventHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"name":"stuff"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a rejection", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too vague") {
		t.Errorf("body = %s, want reject reason", rec.Body.String())
	}
}

func TestProposeHandlerBadBody(t *testing.T) {
	mux := eventMux(NewEventHandler(&stubEventService{}, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProposeHandlerDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"name required", domain.ErrNameRequired, http.StatusBadRequest},
		{"invalid period", domain.ErrInvalidPeriod, http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := eventMux(NewEventHandler(&stubEventService{err: tt.err}, testLogger()))

			req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"name":"x"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListHandler(t *testing.T) {
	svc := &stubEventService{list: []service.Detail{
		{Event: domain.Event{ID: "ev-1"}, PriceUp: 0.5, PriceDown: 0.5},
		{Event: domain.Event{ID: "ev-2"}, PriceUp: 0.62, PriceDown: 0.38},
	}}
	mux := eventMux(NewEventHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events?status=open", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Events []service.Detail `json:"events"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Count != 2 || len(body.Events) != 2 {
		t.Errorf("count = %d, events = %d", body.Count, len(body.Events))
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	mux := eventMux(NewEventHandler(&stubEventService{err: domain.ErrNotFound}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestResolveHandlerWindowNotElapsed(t *testing.T) {
	mux := eventMux(NewEventHandler(&stubEventService{err: domain.ErrWindowNotElapsed}, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/events/ev-1/resolve", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSuggestWindowHandler(t *testing.T) {
	mux := eventMux(NewEventHandler(&stubEventService{window: 1440}, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/events/suggest-window", strings.NewReader(`{"name":"Rust"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]int
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["window_minutes"] != 1440 {
		t.Errorf("window_minutes = %d, want 1440", body["window_minutes"])
	}
}

func TestImageHandler(t *testing.T) {
	svc := &stubEventService{image: []byte("png-bytes"), imageType: "image/png"}
	mux := eventMux(NewEventHandler(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/events/ev-1/image", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age") {
		t.Errorf("cache control = %q", cc)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
