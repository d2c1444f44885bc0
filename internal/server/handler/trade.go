package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/attnmarkets/attnd/internal/service"
)

// TradeService defines the trade operations the handler needs.
type TradeService interface {
	Record(ctx context.Context, eventID, side string, amount float64, traderID string) (service.TradeResult, error)
}

// TradeHandler serves trade placement endpoints.
type TradeHandler struct {
	svc    TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a trade handler.
func NewTradeHandler(svc TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		svc:    svc,
		logger: logHandler(logger, "trade"),
	}
}

type tradeRequest struct {
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
}

// Record places a trade on an open event. The trader identity comes from the
// X-Trader-Id header and may be empty for anonymous trades.
// POST /api/events/{id}/trades
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "id")

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Record(r.Context(), eventID, req.Side, req.Amount, traderID(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// traderID extracts the caller's trader identity from request headers.
func traderID(r *http.Request) string {
	return r.Header.Get("X-Trader-Id")
}
