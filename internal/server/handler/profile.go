package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/attnmarkets/attnd/internal/domain"
)

// ProfileService defines the profile operations the handler needs.
type ProfileService interface {
	Get(ctx context.Context, traderID, displayName string) (domain.Profile, error)
	Trades(ctx context.Context, traderID string) ([]domain.TraderTrade, error)
	SetDisplayName(ctx context.Context, traderID, displayName string) error
}

// ProfileHandler serves trader profile endpoints.
type ProfileHandler struct {
	svc    ProfileService
	logger *slog.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(svc ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		svc:    svc,
		logger: logHandler(logger, "profile"),
	}
}

// Get returns the caller's profile, creating it on first access.
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), traderID(r), r.Header.Get("X-Display-Name"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Trades returns the caller's trade history joined with event details.
// GET /api/profile/trades
func (h *ProfileHandler) Trades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.Trades(r.Context(), traderID(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// SetDisplayName updates the caller's display name.
// PUT /api/profile/display-name
func (h *ProfileHandler) SetDisplayName(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetDisplayName(r.Context(), traderID(r), req.DisplayName); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"display_name": req.DisplayName})
}
