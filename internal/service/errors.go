package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Service errors.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountBanned       = errors.New("account is banned")
	ErrEmailExists         = errors.New("email already registered")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrProfileIncomplete   = errors.New("profile is incomplete")
	ErrAlreadyBoosted      = errors.New("profile is already boosted")
	ErrUpgradeRequired     = errors.New("feature requires a higher plan")
	ErrQuotaExceeded       = errors.New("usage quota exceeded")
	ErrSelfAction          = errors.New("cannot target yourself")
	ErrInterestExists      = errors.New("interest already sent")
	ErrInterestNotFound    = errors.New("interest not found")
	ErrInterestNotPending  = errors.New("interest is not pending")
	ErrMatchNotFound       = errors.New("match not found")
	ErrNotParticipant      = errors.New("caller is not allowed to act on this resource")
	ErrConversationClosed  = errors.New("conversation not found")
	ErrShortlistFull       = errors.New("shortlist is full")
	ErrShortlistExists     = errors.New("user already shortlisted")
	ErrShortlistNotFound   = errors.New("shortlist entry not found")
	ErrBlockNotFound       = errors.New("block not found")
	ErrReportExists        = errors.New("a pending report already exists")
	ErrReportNotFound      = errors.New("report not found")
	ErrNotInQuickPicks     = errors.New("user is not in today's quick picks")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// QuotaError is returned when a metered action exceeds the plan limit.
type QuotaError struct {
	Feature model.Feature
	Plan    model.Plan
	Limit   int
	Used    int
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d until %s", e.Feature, e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Unwrap lets errors.Is match ErrQuotaExceeded.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
