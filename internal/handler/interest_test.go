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

type fakeInterestAPI struct {
	sentTo       string
	responded    [2]string
	respondWith  model.InterestStatus
	withdrawn    string
	unmatched    string
	listLimit    int
	listStatus   model.InterestStatus
	respondErr   error
	reverseMatch bool
}

func (f *fakeInterestAPI) Send(_ context.Context, fromID, toID string) (*service.SendResult, error) {
	f.sentTo = toID
	res := &service.SendResult{Interest: &model.Interest{ID: "i1", FromUserID: fromID, ToUserID: toID, Status: model.InterestPending}}
	if f.reverseMatch {
		res.Interest.Status = model.InterestAccepted
		res.Match = &model.Match{ID: "m1", ConversationID: "c1", Status: model.MatchActive}
	}
	return res, nil
}

func (f *fakeInterestAPI) Respond(_ context.Context, userID, interestID string, status model.InterestStatus) (*service.SendResult, error) {
	f.responded = [2]string{userID, interestID}
	f.respondWith = status
	if f.respondErr != nil {
		return nil, f.respondErr
	}
	return &service.SendResult{Interest: &model.Interest{ID: interestID, Status: status}}, nil
}

func (f *fakeInterestAPI) Withdraw(_ context.Context, userID, interestID string) (*model.Interest, error) {
	f.withdrawn = interestID
	return &model.Interest{ID: interestID, FromUserID: userID, Status: model.InterestWithdrawn}, nil
}

func (f *fakeInterestAPI) ListSent(_ context.Context, _ string, limit int) ([]model.InterestWithProfile, error) {
	f.listLimit = limit
	return []model.InterestWithProfile{{Interest: model.Interest{ID: "i1"}}}, nil
}

func (f *fakeInterestAPI) ListReceived(_ context.Context, _ string, status model.InterestStatus, limit int) ([]model.InterestWithProfile, error) {
	f.listStatus = status
	f.listLimit = limit
	return nil, nil
}

func (f *fakeInterestAPI) ListMatches(context.Context, string) ([]model.MatchWithProfile, error) {
	return []model.MatchWithProfile{{Match: model.Match{ID: "m1"}}}, nil
}

func (f *fakeInterestAPI) Unmatch(_ context.Context, _ string, matchID string) (*model.Match, error) {
	f.unmatched = matchID
	return &model.Match{ID: matchID, Status: model.MatchUnmatched}, nil
}

func newInterestRouter(h *InterestHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/interests", h.Send)
	r.Post("/api/v1/interests/{id}/respond", h.Respond)
	r.Delete("/api/v1/interests/{id}", h.Withdraw)
	r.Get("/api/v1/interests/sent", h.Sent)
	r.Get("/api/v1/interests/received", h.Received)
	r.Get("/api/v1/matches", h.Matches)
	r.Delete("/api/v1/matches/{id}", h.Unmatch)
	return r
}

func TestInterestHandler_Send(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		reverse     bool
		wantStatus  int
		wantMatched bool
	}{
		{name: "pending", body: `{"toUserId":"u2"}`, wantStatus: http.StatusCreated},
		{name: "mutual", body: `{"toUserId":"u2"}`, reverse: true, wantStatus: http.StatusCreated, wantMatched: true},
		{name: "malformed body", body: `{"toUserId":`, wantStatus: http.StatusBadRequest},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeInterestAPI{reverseMatch: tt.reverse}
			r := newInterestRouter(NewInterestHandler(svc, discardLogger()))

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/interests", strings.NewReader(tt.body)), "u1"))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusCreated {
				assert.Equal(t, "INVALID_JSON", decodeEnvelope(t, rec).Error.Code)
				return
			}
			assert.Equal(t, "u2", svc.sentTo)

			var res struct {
				Interest model.Interest `json:"interest"`
				Match    *model.Match   `json:"match"`
				Matched  bool           `json:"matched"`
			}
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &res))
			assert.Equal(t, tt.wantMatched, res.Matched)
			assert.Equal(t, tt.wantMatched, res.Match != nil)
			assert.Equal(t, "u1", res.Interest.FromUserID)
		})
	}
}

func TestInterestHandler_Respond(t *testing.T) {
	t.Parallel()

	svc := &fakeInterestAPI{}
	r := newInterestRouter(NewInterestHandler(svc, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/interests/i9/respond", strings.NewReader(`{"status":"accepted"}`)), "u2"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"u2", "i9"}, svc.responded)
	assert.Equal(t, model.InterestAccepted, svc.respondWith)

	svc.respondErr = service.ErrInterestNotPending
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/interests/i9/respond", strings.NewReader(`{"status":"rejected"}`)), "u2"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INTEREST_NOT_PENDING", decodeEnvelope(t, rec).Error.Code)

	svc.respondErr = service.ErrNotParticipant
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/interests/i9/respond", strings.NewReader(`{"status":"accepted"}`)), "u3"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInterestHandler_Lists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		wantStatus model.InterestStatus
		wantLimit  int
	}{
		{name: "sent with limit", target: "/api/v1/interests/sent?limit=15", wantLimit: 15},
		{name: "sent malformed limit", target: "/api/v1/interests/sent?limit=lots", wantLimit: 0},
		{name: "received filtered", target: "/api/v1/interests/received?status=pending&limit=5", wantStatus: model.InterestPending, wantLimit: 5},
		{name: "received unfiltered", target: "/api/v1/interests/received", wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeInterestAPI{listLimit: -1}
			r := newInterestRouter(NewInterestHandler(svc, discardLogger()))

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, tt.target, nil), "u1"))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantLimit, svc.listLimit)
			assert.Equal(t, tt.wantStatus, svc.listStatus)

			var list struct {
				Items []json.RawMessage `json:"items"`
			}
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &list))
			assert.NotNil(t, list.Items, "lists are never null")
		})
	}
}

func TestInterestHandler_WithdrawAndUnmatch(t *testing.T) {
	t.Parallel()

	svc := &fakeInterestAPI{}
	r := newInterestRouter(NewInterestHandler(svc, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/interests/i4", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "i4", svc.withdrawn)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/matches/m7", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m7", svc.unmatched)
	var match model.Match
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &match))
	assert.Equal(t, model.MatchUnmatched, match.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
