package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// AuthService handles registration, sessions and account deletion.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	profiles   ProfileCache
	events     EventPublisher
	issuer     *auth.TokenIssuer
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService. profiles and events may be nil.
func NewAuthService(users UserStore, sessions SessionStore, profiles ProfileCache, events EventPublisher, issuer *auth.TokenIssuer, refreshTTL time.Duration, logger *slog.Logger) *AuthService {
	if events == nil {
		events = noopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		profiles:   profiles,
		events:     events,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		logger:     logger.With("component", "auth"),
		now:        time.Now,
	}
}

// Session is the result of register, login and refresh.
type Session struct {
	User   *model.User
	Tokens *model.TokenPair
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := auth.ValidatePasswordPolicy(password); err != nil {
		return nil, invalid("password", err.Error())
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Plan:         model.PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return &Session{User: user, Tokens: tokens}, nil
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same error after comparable work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if user.Banned {
		return nil, ErrAccountBanned
	}

	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token and issues a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	current, err := s.lookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !current.IsUsable(s.now()) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.Banned {
		return nil, ErrAccountBanned
	}

	next, plaintext, err := s.newRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.RotateRefreshToken(ctx, current.ID, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Lost a race with another refresh of the same token.
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, accessExp, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		User: user,
		Tokens: &model.TokenPair{
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshToken:     plaintext,
			RefreshExpiresAt: next.ExpiresAt,
		},
	}, nil
}

// Logout revokes the refresh token, when given, and denylists the access token.
func (s *AuthService) Logout(ctx context.Context, ac *model.AuthContext, refreshToken string) error {
	if refreshToken != "" {
		token, err := s.lookupRefreshToken(ctx, refreshToken)
		switch {
		case errors.Is(err, ErrInvalidRefreshToken):
		case err != nil:
			return err
		case token.UserID == ac.UserID:
			if err := s.users.RevokeRefreshToken(ctx, token.ID); err != nil {
				return err
			}
		}
	}

	if err := s.sessions.DenyToken(ctx, ac.TokenID, ac.ExpiresAt); err != nil {
		return fmt.Errorf("deny access token: %w", err)
	}
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// EffectivePlan returns the plan in force for user now.
func (s *AuthService) EffectivePlan(user *model.User) model.Plan {
	return user.EffectivePlan(s.now())
}

// DeleteAccount soft-deletes the caller and ends every session and match.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	peers, err := s.users.DeleteAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete account: %w", err)
	}

	if err := s.sessions.RevokeUserTokens(ctx, userID, s.now(), s.issuer.TTL()); err != nil {
		s.logger.Warn("failed to revoke access tokens", "user_id", userID, "error", err)
	}
	if s.profiles != nil {
		if err := s.profiles.DeleteProfile(ctx, userID); err != nil {
			s.logger.Warn("failed to invalidate profile cache", "user_id", userID, "error", err)
		}
	}
	for _, peer := range peers {
		s.events.Publish(ctx, peer, model.Event{
			Type: model.EventMatch,
			Data: map[string]string{"userId": userID, "status": string(model.MatchUnmatched)},
		})
	}

	s.logger.Info("account deleted", "user_id", userID, "ended_matches", len(peers))
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	access, accessExp, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	token, plaintext, err := s.newRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateRefreshToken(ctx, token); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     plaintext,
		RefreshExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *AuthService) newRefreshToken(userID string) (*model.RefreshToken, string, error) {
	generated, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now().UTC()
	return &model.RefreshToken{
		ID:        ulid.Make().String(),
		UserID:    userID,
		TokenHash: generated.Hash,
		Prefix:    generated.Prefix,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, generated.Plaintext, nil
}

func (s *AuthService) lookupRefreshToken(ctx context.Context, plaintext string) (*model.RefreshToken, error) {
	prefix, err := auth.ParseRefreshToken(plaintext)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	candidates, err := s.users.GetRefreshTokensByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	hash := auth.HashRefreshToken(plaintext)
	for _, c := range candidates {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(c.TokenHash)) == 1 {
			return c, nil
		}
	}
	return nil, ErrInvalidRefreshToken
}
