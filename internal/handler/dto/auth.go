package dto

import (
	"github.com/aroosi/aroosi-api/internal/model"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionResponse is returned by register, login and refresh.
type SessionResponse struct {
	User   *model.User      `json:"user"`
	Plan   model.Plan       `json:"plan"`
	Tokens *model.TokenPair `json:"tokens"`
}

// MeResponse describes the caller.
type MeResponse struct {
	User *model.User `json:"user"`
	Plan model.Plan  `json:"plan"`
}
