package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
)

// NotificationAPI is the device and inbox surface used by NotificationHandler.
type NotificationAPI interface {
	RegisterDevice(ctx context.Context, userID, token string, platform model.DevicePlatform) (*model.DeviceToken, error)
	UnregisterDevice(ctx context.Context, userID, token string) error
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
}

// NotificationHandler handles push devices and the in-app notification list.
type NotificationHandler struct {
	svc    NotificationAPI
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc NotificationAPI, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// RegisterDevice handles POST /api/v1/notifications/devices.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.DeviceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	device, err := h.svc.RegisterDevice(r.Context(), userID, req.Token, req.Platform)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, device)
}

// UnregisterDevice handles DELETE /api/v1/notifications/devices/{token}.
func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnregisterDevice(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/notifications?unread=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	unread := queryBool(r, "unread")
	items, err := h.svc.List(r.Context(), userID, unread != nil && *unread, queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(items))
}

// MarkRead handles POST /api/v1/notifications/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.MarkReadRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	n, err := h.svc.MarkRead(r.Context(), userID, req.IDs)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.CountResponse{Updated: n})
}
