package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
)

// ShortlistAPI is the shortlist surface used by ShortlistHandler.
type ShortlistAPI interface {
	Add(ctx context.Context, userID, targetID, note string) (*model.ShortlistEntry, error)
	Remove(ctx context.Context, userID, targetID string) error
	List(ctx context.Context, userID string) ([]*model.ShortlistEntry, error)
}

// ShortlistHandler handles the caller's shortlist.
type ShortlistHandler struct {
	svc    ShortlistAPI
	logger *slog.Logger
}

// NewShortlistHandler creates a new ShortlistHandler.
func NewShortlistHandler(svc ShortlistAPI, logger *slog.Logger) *ShortlistHandler {
	return &ShortlistHandler{svc: svc, logger: logger}
}

// Add handles POST /api/v1/shortlist.
func (h *ShortlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.ShortlistRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	entry, err := h.svc.Add(r.Context(), userID, req.ToUserID, req.Note)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, entry)
}

// Remove handles DELETE /api/v1/shortlist/{userId}.
func (h *ShortlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Remove(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/shortlist.
func (h *ShortlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.List(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(entries))
}
