package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/handler/dto"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

// AuthAPI is the account and session surface used by AuthHandler.
type AuthAPI interface {
	Register(ctx context.Context, email, password string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Logout(ctx context.Context, ac *model.AuthContext, refreshToken string) error
	Me(ctx context.Context, userID string) (*model.User, error)
	EffectivePlan(user *model.User) model.Plan
}

// AuthHandler handles registration, login and token lifecycle.
type AuthHandler struct {
	svc    AuthAPI
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthAPI, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	sess, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, h.session(sess))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, h.session(sess))
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required")
		return
	}

	sess, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, h.session(sess))
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac := auth.AuthFromContext(r.Context())
	if ac == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.RefreshRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	if err := h.svc.Logout(r.Context(), ac, req.RefreshToken); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, dto.MeResponse{User: user, Plan: h.svc.EffectivePlan(user)})
}

func (h *AuthHandler) session(sess *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		User:   sess.User,
		Plan:   h.svc.EffectivePlan(sess.User),
		Tokens: sess.Tokens,
	}
}
