package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
)

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*model.AuthContext, error)
}

// SessionChecker reports revoked tokens.
type SessionChecker interface {
	IsTokenDenied(ctx context.Context, tokenID string) (bool, error)
	UserTokensRevokedAt(ctx context.Context, userID string) (time.Time, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Tokens   TokenParser
	Sessions SessionChecker
}

// Auth returns a middleware that authenticates requests with a JWT access token.
// The token comes from "Authorization: Bearer <token>" or, for websocket
// clients that cannot set headers, the token query parameter.
// Redis lookups fail open so a cache outage does not lock everybody out.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w, "UNAUTHORIZED", "Missing or invalid access token")
				return
			}

			authCtx, err := cfg.Tokens.Parse(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					logAuthFailure(cfg.Logger, r, "expired_token")
					writeAuthError(w, "TOKEN_EXPIRED", "Access token expired")
					return
				}
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeAuthError(w, "UNAUTHORIZED", "Missing or invalid access token")
				return
			}

			if cfg.Sessions != nil && revoked(r.Context(), cfg, authCtx) {
				logAuthFailure(cfg.Logger, r, "revoked_token")
				writeAuthError(w, "UNAUTHORIZED", "Missing or invalid access token")
				return
			}

			annotateUser(r.Context(), authCtx.UserID)
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// revoked checks the logout denylist and the per-user revocation marker.
func revoked(ctx context.Context, cfg AuthConfig, authCtx *model.AuthContext) bool {
	denied, err := cfg.Sessions.IsTokenDenied(ctx, authCtx.TokenID)
	if err != nil {
		cfg.Logger.Error("token denylist lookup failed", slog.String("error", err.Error()))
	} else if denied {
		return true
	}

	revokedAt, err := cfg.Sessions.UserTokensRevokedAt(ctx, authCtx.UserID)
	if err != nil {
		cfg.Logger.Error("token revocation lookup failed", slog.String("error", err.Error()))
		return false
	}
	return !revokedAt.IsZero() && !authCtx.IssuedAt.After(revokedAt)
}

// extractToken reads the bearer token from the header, then the query string.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aroosi"`)
	writeError(w, http.StatusUnauthorized, code, message)
}
