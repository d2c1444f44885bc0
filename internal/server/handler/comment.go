package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/attnmarkets/attnd/internal/domain"
)

// CommentService defines the comment operations the handler needs.
type CommentService interface {
	Add(ctx context.Context, eventID, traderID, displayName, body string) (domain.Comment, error)
	List(ctx context.Context, eventID string) ([]domain.Comment, error)
}

// CommentHandler serves per-event comment endpoints.
type CommentHandler struct {
	svc    CommentService
	logger *slog.Logger
}

// NewCommentHandler creates a comment handler.
func NewCommentHandler(svc CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		svc:    svc,
		logger: logHandler(logger, "comment"),
	}
}

type commentRequest struct {
	Body        string `json:"body"`
	DisplayName string `json:"display_name"`
}

// Add posts a comment on an open or resolved event.
// POST /api/events/{id}/comments
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "id")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Add(r.Context(), eventID, traderID(r), req.DisplayName, req.Body)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// List returns the comments for an event, newest first.
// GET /api/events/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID := pathParam(r, "id")

	comments, err := h.svc.List(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"comments": comments,
		"count":    len(comments),
	})
}
