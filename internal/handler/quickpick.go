package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

// QuickPickAPI is the daily quick-pick surface used by QuickPickHandler.
type QuickPickAPI interface {
	Today(ctx context.Context, userID string) ([]model.QuickPick, error)
	Act(ctx context.Context, userID, targetID string, action model.QuickPickActionType) (*service.ActionResult, error)
}

// QuickPickHandler serves the daily quick picks.
type QuickPickHandler struct {
	svc    QuickPickAPI
	logger *slog.Logger
}

// NewQuickPickHandler creates a new QuickPickHandler.
func NewQuickPickHandler(svc QuickPickAPI, logger *slog.Logger) *QuickPickHandler {
	return &QuickPickHandler{svc: svc, logger: logger}
}

// Today handles GET /api/v1/quick-picks.
func (h *QuickPickHandler) Today(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	picks, err := h.svc.Today(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(picks))
}

// Act handles POST /api/v1/quick-picks/{userId}/action.
func (h *QuickPickHandler) Act(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.QuickPickActionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	result, err := h.svc.Act(r.Context(), userID, chi.URLParam(r, "userId"), req.Action)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.QuickPickActionResponse{
		Action:   result.Action,
		Interest: toInterestResult(result.Interest),
	})
}
