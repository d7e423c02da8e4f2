package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aroosi/aroosi-api/internal/middleware"
	"github.com/aroosi/aroosi-api/internal/service"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired"},
	{service.ErrAccountBanned, http.StatusForbidden, "ACCOUNT_BANNED", "This account has been suspended"},
	{service.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS", "Email is already registered"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{service.ErrProfileNotFound, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found"},
	{service.ErrProfileExists, http.StatusConflict, "PROFILE_EXISTS", "Profile already exists"},
	{service.ErrProfileIncomplete, http.StatusForbidden, "PROFILE_INCOMPLETE", "Complete your profile first"},
	{service.ErrAlreadyBoosted, http.StatusConflict, "ALREADY_BOOSTED", "Profile is already boosted"},
	{service.ErrUpgradeRequired, http.StatusForbidden, "UPGRADE_REQUIRED", "This feature requires a higher plan"},
	{service.ErrSelfAction, http.StatusBadRequest, "SELF_ACTION", "You cannot do this to yourself"},
	{service.ErrInterestExists, http.StatusConflict, "INTEREST_EXISTS", "Interest already sent"},
	{service.ErrInterestNotFound, http.StatusNotFound, "INTEREST_NOT_FOUND", "Interest not found"},
	{service.ErrInterestNotPending, http.StatusConflict, "INTEREST_NOT_PENDING", "Interest is no longer pending"},
	{service.ErrMatchNotFound, http.StatusNotFound, "MATCH_NOT_FOUND", "Match not found"},
	{service.ErrNotParticipant, http.StatusForbidden, "FORBIDDEN", "You cannot act on this resource"},
	{service.ErrConversationClosed, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation not found"},
	{service.ErrShortlistFull, http.StatusTooManyRequests, "SHORTLIST_FULL", "Shortlist is full for your plan"},
	{service.ErrShortlistExists, http.StatusConflict, "ALREADY_SHORTLISTED", "User is already shortlisted"},
	{service.ErrShortlistNotFound, http.StatusNotFound, "SHORTLIST_NOT_FOUND", "Shortlist entry not found"},
	{service.ErrBlockNotFound, http.StatusNotFound, "BLOCK_NOT_FOUND", "Block not found"},
	{service.ErrReportExists, http.StatusConflict, "REPORT_EXISTS", "You already reported this user"},
	{service.ErrReportNotFound, http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found"},
	{service.ErrNotInQuickPicks, http.StatusNotFound, "NOT_IN_QUICK_PICKS", "User is not in today's quick picks"},
}

// respondError maps a service error onto the failure envelope.
// Unknown errors are logged and reported as 500 without internals.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeErrorDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(),
			map[string]any{"field": verr.Field, "reason": verr.Reason})
		return
	}

	var qerr *service.QuotaError
	if errors.As(err, &qerr) {
		if retry := int(time.Until(qerr.ResetAt).Seconds()); retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		writeErrorDetails(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", "Usage limit reached for your plan",
			map[string]any{
				"feature": qerr.Feature,
				"plan":    qerr.Plan,
				"limit":   qerr.Limit,
				"used":    qerr.Used,
				"resetAt": qerr.ResetAt,
			})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.message)
			return
		}
	}

	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input")
		return
	}

	logger.Error("request failed",
		slog.String("error", err.Error()),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}
