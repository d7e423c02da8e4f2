package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
)

// SafetyAPI is the block and report surface used by SafetyHandler.
type SafetyAPI interface {
	Block(ctx context.Context, userID, targetID string) (*model.Block, error)
	Unblock(ctx context.Context, userID, targetID string) error
	ListBlocked(ctx context.Context, userID string) ([]*model.Block, error)
	Report(ctx context.Context, userID, targetID string, reason model.ReportReason, description string) (*model.Report, error)
}

// SafetyHandler handles blocking and reporting.
type SafetyHandler struct {
	svc    SafetyAPI
	logger *slog.Logger
}

// NewSafetyHandler creates a new SafetyHandler.
func NewSafetyHandler(svc SafetyAPI, logger *slog.Logger) *SafetyHandler {
	return &SafetyHandler{svc: svc, logger: logger}
}

// Block handles POST /api/v1/safety/block.
func (h *SafetyHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.BlockRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	block, err := h.svc.Block(r.Context(), userID, req.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, block)
}

// Unblock handles DELETE /api/v1/safety/block/{userId}.
func (h *SafetyHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Unblock(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Blocked handles GET /api/v1/safety/blocked.
func (h *SafetyHandler) Blocked(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	blocks, err := h.svc.ListBlocked(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(blocks))
}

// Report handles POST /api/v1/safety/report.
func (h *SafetyHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.ReportRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	report, err := h.svc.Report(r.Context(), userID, req.UserID, req.Reason, req.Description)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user reported",
		slog.String("report_id", report.ID),
		slog.String("reason", string(report.Reason)),
	)
	writeData(w, http.StatusCreated, report)
}
