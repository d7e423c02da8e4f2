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

type fakeQuickPickAPI struct {
	target string
	action model.QuickPickActionType
	picks  []model.QuickPick
	mutual bool
}

func (f *fakeQuickPickAPI) Today(context.Context, string) ([]model.QuickPick, error) {
	return f.picks, nil
}

func (f *fakeQuickPickAPI) Act(_ context.Context, userID, targetID string, action model.QuickPickActionType) (*service.ActionResult, error) {
	f.target, f.action = targetID, action
	if !action.IsValid() {
		return nil, &service.ValidationError{Field: "action", Reason: "must be like or skip"}
	}
	if targetID == "stranger" {
		return nil, service.ErrNotInQuickPicks
	}
	res := &service.ActionResult{Action: action}
	if action == model.QuickPickLike {
		res.Interest = &service.SendResult{Interest: &model.Interest{ID: "i1", FromUserID: userID, ToUserID: targetID}}
		if f.mutual {
			res.Interest.Match = &model.Match{ID: "m1"}
		}
	}
	return res, nil
}

func newQuickPickRouter(h *QuickPickHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/v1/quick-picks", h.Today)
	r.Post("/api/v1/quick-picks/{userId}/action", h.Act)
	return r
}

func TestQuickPickHandler_Act(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		target       string
		body         string
		mutual       bool
		wantStatus   int
		wantCode     string
		wantInterest bool
		wantMatched  bool
	}{
		{name: "skip", target: "u2", body: `{"action":"skip"}`, wantStatus: http.StatusOK},
		{name: "like", target: "u2", body: `{"action":"like"}`, wantStatus: http.StatusOK, wantInterest: true},
		{name: "like matches", target: "u2", body: `{"action":"like"}`, mutual: true, wantStatus: http.StatusOK, wantInterest: true, wantMatched: true},
		{name: "not in picks", target: "stranger", body: `{"action":"like"}`, wantStatus: http.StatusNotFound, wantCode: "NOT_IN_QUICK_PICKS"},
		{name: "unknown action", target: "u2", body: `{"action":"superlike"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeQuickPickAPI{mutual: tt.mutual}
			r := newQuickPickRouter(NewQuickPickHandler(svc, discardLogger()))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/quick-picks/"+tt.target+"/action", strings.NewReader(tt.body))
			r.ServeHTTP(rec, asUser(req, "u1"))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.target, svc.target)
			env := decodeEnvelope(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}

			var res struct {
				Action   model.QuickPickActionType `json:"action"`
				Interest *struct {
					Interest model.Interest `json:"interest"`
					Matched  bool           `json:"matched"`
				} `json:"interest"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &res))
			assert.Equal(t, svc.action, res.Action)
			if !tt.wantInterest {
				assert.Nil(t, res.Interest)
				return
			}
			require.NotNil(t, res.Interest)
			assert.Equal(t, "u2", res.Interest.Interest.ToUserID)
			assert.Equal(t, tt.wantMatched, res.Interest.Matched)
		})
	}
}

func TestQuickPickHandler_Today(t *testing.T) {
	t.Parallel()

	svc := &fakeQuickPickAPI{picks: []model.QuickPick{
		{Day: "2026-03-15", Profile: model.ProfileSummary{UserID: "u2"}},
		{Day: "2026-03-15", Profile: model.ProfileSummary{UserID: "u3"}},
	}}
	r := newQuickPickRouter(NewQuickPickHandler(svc, discardLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/quick-picks", nil), "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []model.QuickPick `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "u3", list.Items[1].Profile.UserID)

	svc.picks = nil
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/quick-picks", nil), "u1"))
	assert.JSONEq(t, `{"items":[]}`, string(decodeEnvelope(t, rec).Data))
}
