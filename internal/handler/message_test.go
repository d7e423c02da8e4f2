package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

type fakeMessageAPI struct {
	conversation string
	before       string
	limit        int
	sentText     string
	err          error
}

func (f *fakeMessageAPI) ListConversations(context.Context, string) ([]model.Conversation, error) {
	return nil, f.err
}

func (f *fakeMessageAPI) ListMessages(_ context.Context, _ string, conversationID, before string, limit int) (*service.MessagePage, error) {
	f.conversation, f.before, f.limit = conversationID, before, limit
	if f.err != nil {
		return nil, f.err
	}
	return &service.MessagePage{
		Messages:   []*model.Message{{ID: "msg2", ConversationID: conversationID, Text: "salaam"}},
		NextCursor: "msg2",
		HasMore:    true,
	}, nil
}

func (f *fakeMessageAPI) Send(_ context.Context, userID, conversationID, text string) (*model.Message, error) {
	f.conversation, f.sentText = conversationID, text
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{ID: "msg3", ConversationID: conversationID, FromUserID: userID, Text: text}, nil
}

func (f *fakeMessageAPI) MarkRead(_ context.Context, _ string, conversationID string) (int64, error) {
	f.conversation = conversationID
	return 3, f.err
}

func newMessageRouter(h *MessageHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/v1/conversations", h.Conversations)
	r.Get("/api/v1/conversations/{id}/messages", h.Messages)
	r.Post("/api/v1/conversations/{id}/messages", h.Send)
	r.Post("/api/v1/conversations/{id}/read", h.MarkRead)
	return r
}

func TestMessageHandler_MessagesQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		wantBefore string
		wantLimit  int
	}{
		{name: "before and limit", target: "/api/v1/conversations/c1/messages?before=msg9&limit=20", wantBefore: "msg9", wantLimit: 20},
		{name: "first page", target: "/api/v1/conversations/c1/messages", wantLimit: 0},
		{name: "malformed limit falls back", target: "/api/v1/conversations/c1/messages?limit=-x", wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeMessageAPI{}
			r := newMessageRouter(NewMessageHandler(svc, discardLogger()))

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, tt.target, nil), "u1"))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "c1", svc.conversation)
			assert.Equal(t, tt.wantBefore, svc.before)
			assert.Equal(t, tt.wantLimit, svc.limit)

			var page struct {
				Items      []model.Message `json:"items"`
				Pagination struct {
					NextCursor string `json:"nextCursor"`
					HasMore    bool   `json:"hasMore"`
				} `json:"pagination"`
			}
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
			require.Len(t, page.Items, 1)
			assert.Equal(t, "salaam", page.Items[0].Text)
			assert.Equal(t, "msg2", page.Pagination.NextCursor)
			assert.True(t, page.Pagination.HasMore)
		})
	}
}

func TestMessageHandler_Send(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{name: "not a participant", err: service.ErrNotParticipant, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "conversation closed", err: service.ErrConversationClosed, wantStatus: http.StatusNotFound, wantCode: "CONVERSATION_NOT_FOUND"},
		{name: "empty text", err: &service.ValidationError{Field: "text", Reason: "required"}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeMessageAPI{err: tt.err}
			r := newMessageRouter(NewMessageHandler(svc, discardLogger()))

			rec := httptest.NewRecorder()
			body := strings.NewReader(`{"text":"Assalamu alaikum"}`)
			r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/conversations/c5/messages", body), "u1"))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "c5", svc.conversation)
			assert.Equal(t, "Assalamu alaikum", svc.sentText)
			env := decodeEnvelope(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			var msg model.Message
			require.NoError(t, json.Unmarshal(env.Data, &msg))
			assert.Equal(t, "u1", msg.FromUserID)
		})
	}
}

func TestMessageHandler_MarkRead(t *testing.T) {
	t.Parallel()

	svc := &fakeMessageAPI{}
	r := newMessageRouter(NewMessageHandler(svc, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/conversations/c2/read", nil), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c2", svc.conversation)
	assert.JSONEq(t, `{"updated":3}`, string(decodeEnvelope(t, rec).Data))
}

func TestMessageHandler_ConversationsEmpty(t *testing.T) {
	t.Parallel()

	r := newMessageRouter(NewMessageHandler(&fakeMessageAPI{}, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, string(decodeEnvelope(t, rec).Data))
}
