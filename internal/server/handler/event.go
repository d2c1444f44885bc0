package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/service"
)

// EventService defines the event operations the handler needs.
type EventService interface {
	Propose(ctx context.Context, req service.ProposeRequest) (domain.Event, error)
	Get(ctx context.Context, id string) (service.Detail, error)
	List(ctx context.Context, f domain.EventFilter) ([]service.Detail, error)
	ForceResolve(ctx context.Context, id string) (domain.Event, error)
	Delete(ctx context.Context, id string) error
	SuggestWindow(ctx context.Context, name, sourceURL, description string) int
	Image(ctx context.Context, id string) ([]byte, string, error)
}

// EventHandler serves attention market event endpoints.
type EventHandler struct {
	svc    EventService
	logger *slog.Logger
}

// NewEventHandler creates an event handler.
func NewEventHandler(svc EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		svc:    svc,
		logger: logHandler(logger, "event"),
	}
}

type proposeRequest struct {
	Name        string `json:"name"`
	SourceURL   string `json:"source_url"`
	Description string `json:"description"`
	Period      string `json:"period"`
	MarketType  string `json:"market_type"`
	Demo        bool   `json:"demo"`
}

// Propose submits a new market proposal. Rejections are returned in the
// response body with status "rejected" rather than as an HTTP error.
// POST /api/events
func (h *EventHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.svc.Propose(r.Context(), service.ProposeRequest{
		Name:        req.Name,
		SourceURL:   req.SourceURL,
		Description: req.Description,
		Period:      req.Period,
		MarketType:  req.MarketType,
		Demo:        req.Demo,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if e.Status == domain.StatusRejected {
		status = http.StatusOK
	}
	writeJSON(w, status, e)
}

// List returns events, optionally filtered by status, exact name, or a
// case-insensitive substring query.
// GET /api/events?status=open&name=...&q=...
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.EventFilter{
		Status: domain.EventStatus(q.Get("status")),
		Name:   q.Get("name"),
		Query:  q.Get("q"),
	}

	events, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Get returns a single event with live prices and volume.
// GET /api/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Resolve force-resolves an open event whose window has elapsed.
// POST /api/events/{id}/resolve
func (h *EventHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	e, err := h.svc.ForceResolve(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// Delete removes an event and all of its dependent records.
// DELETE /api/events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type suggestWindowRequest struct {
	Name        string `json:"name"`
	SourceURL   string `json:"source_url"`
	Description string `json:"description"`
}

// SuggestWindow returns a suggested market window in minutes for a topic.
// POST /api/events/suggest-window
func (h *EventHandler) SuggestWindow(w http.ResponseWriter, r *http.Request) {
	var req suggestWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	minutes := h.svc.SuggestWindow(r.Context(), req.Name, req.SourceURL, req.Description)
	writeJSON(w, http.StatusOK, map[string]int{"window_minutes": minutes})
}

// Image serves the stored thumbnail for an event.
// GET /api/events/{id}/image
func (h *EventHandler) Image(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	data, contentType, err := h.svc.Image(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
