package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
)

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authCtx    *model.AuthContext
		mw         func(http.Handler) http.Handler
		wantStatus int
		wantCode   string
	}{
		{
			name:       "admin allowed on admin route",
			authCtx:    &model.AuthContext{UserID: "a1", Role: model.RoleAdmin},
			mw:         RequireAdmin(),
			wantStatus: http.StatusOK,
		},
		{
			name:       "user forbidden on admin route",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleUser},
			mw:         RequireAdmin(),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "any listed role passes",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleUser},
			mw:         RequireRole(model.RoleAdmin, model.RoleUser),
			wantStatus: http.StatusOK,
		},
		{
			name:       "no auth context",
			mw:         RequireAdmin(),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := tt.mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
			if tt.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tt.authCtx))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeErrorCode(t, rec))
			}
		})
	}
}
