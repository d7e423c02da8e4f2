package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
)

// UsageAPI is the quota surface used by UsageHandler.
type UsageAPI interface {
	Summary(ctx context.Context, userID string) (*model.UsageSummary, error)
	History(ctx context.Context, userID string, days int) ([]model.UsageDay, error)
	Consume(ctx context.Context, userID string, feature model.Feature) (*model.UsageStatus, error)
}

// UsageHandler reports and records plan usage.
type UsageHandler struct {
	svc    UsageAPI
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(svc UsageAPI, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{svc: svc, logger: logger}
}

// Summary handles GET /api/v1/usage.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

// History handles GET /api/v1/usage/history?days=.
func (h *UsageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "days must be a number",
				map[string]any{"field": "days", "reason": "must be a number"})
			return
		}
		days = n
	}

	history, err := h.svc.History(r.Context(), userID, days)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(history))
}

// Track handles POST /api/v1/usage/track.
func (h *UsageHandler) Track(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.TrackUsageRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	feature, err := model.ParseFeature(req.Feature)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(),
			map[string]any{"field": "feature", "reason": "is not a metered feature"})
		return
	}

	status, err := h.svc.Consume(r.Context(), userID, feature)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, status)
}
