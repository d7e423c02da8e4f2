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

// MessageAPI is the messaging surface used by MessageHandler.
type MessageAPI interface {
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID, before string, limit int) (*service.MessagePage, error)
	Send(ctx context.Context, userID, conversationID, text string) (*model.Message, error)
	MarkRead(ctx context.Context, userID, conversationID string) (int64, error)
}

// MessageHandler handles conversations and messages over REST.
// Realtime delivery goes through the websocket hub.
type MessageHandler struct {
	svc    MessageAPI
	logger *slog.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc MessageAPI, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// Conversations handles GET /api/v1/conversations.
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	convs, err := h.svc.ListConversations(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewList(convs))
}

// Messages handles GET /api/v1/conversations/{id}/messages?before=&limit=.
func (h *MessageHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ListMessages(r.Context(), userID, chi.URLParam(r, "id"),
		r.URL.Query().Get("before"), queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.NewPage(page.Messages, page.NextCursor, page.HasMore))
}

// Send handles POST /api/v1/conversations/{id}/messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	msg, err := h.svc.Send(r.Context(), userID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, msg)
}

// MarkRead handles POST /api/v1/conversations/{id}/read.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.CountResponse{Updated: n})
}
