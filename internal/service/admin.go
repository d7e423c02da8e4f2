package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// Admin list bounds.
const (
	DefaultAdminLimit = 20
	MaxAdminLimit     = 100
)

// AdminService backs the moderation dashboard.
type AdminService struct {
	store    AdminStore
	sessions SessionStore
	profiles ProfileCache
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminService creates a new AdminService. profiles may be nil.
// tokenTTL is the access token lifetime used for session revocation markers.
func NewAdminService(store AdminStore, sessions SessionStore, profiles ProfileCache, tokenTTL time.Duration, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		store:    store,
		sessions: sessions,
		profiles: profiles,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "admin"),
		now:      time.Now,
	}
}

// Stats returns dashboard counters.
func (s *AdminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	return s.store.GetAdminStats(ctx, model.PeriodStart(model.PeriodDaily, s.now()))
}

// AdminListInput filters the user list.
type AdminListInput struct {
	Query  string
	Banned *bool
	Cursor string
	Limit  int
}

// AdminListOutput is one page of users.
type AdminListOutput struct {
	Users      []*model.AdminProfile
	NextCursor string
	HasMore    bool
}

// ListProfiles pages through users with their profiles.
func (s *AdminService) ListProfiles(ctx context.Context, in AdminListInput) (*AdminListOutput, error) {
	query := strings.TrimSpace(in.Query)
	if err := validateLength("q", query, 0, MaxShortTextLength); err != nil {
		return nil, err
	}

	users, next, err := s.store.ListUsersAdmin(ctx, repository.AdminUserFilter{Query: query, Banned: in.Banned},
		in.Cursor, clampLimit(in.Limit, DefaultAdminLimit, MaxAdminLimit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, invalid("cursor", "is invalid")
		}
		return nil, err
	}
	if users == nil {
		users = []*model.AdminProfile{}
	}
	return &AdminListOutput{Users: users, NextCursor: next, HasMore: next != ""}, nil
}

// SetBan bans or unbans a user. Banning ends every session of the user.
func (s *AdminService) SetBan(ctx context.Context, adminID, userID string, banned bool, reason string) (*model.User, error) {
	if err := validateID("id", userID); err != nil {
		return nil, err
	}
	if adminID == userID {
		return nil, ErrSelfAction
	}
	reason = strings.TrimSpace(reason)
	if err := validateLength("reason", reason, 0, MaxBanReasonLength); err != nil {
		return nil, err
	}
	if !banned {
		reason = ""
	}

	user, err := s.store.SetUserBan(ctx, userID, banned, reason)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("set ban: %w", err)
	}

	if banned {
		if err := s.sessions.RevokeUserTokens(ctx, userID, s.now(), s.tokenTTL); err != nil {
			s.logger.Error("failed to revoke access tokens of banned user", "user_id", userID, "error", err)
		}
	}
	if s.profiles != nil {
		if err := s.profiles.DeleteProfile(ctx, userID); err != nil {
			s.logger.Warn("profile cache invalidation failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("user ban updated", "admin_id", adminID, "user_id", userID, "banned", banned)
	return user, nil
}

// SetPlan grants a plan. expiresAt is ignored for the free plan.
func (s *AdminService) SetPlan(ctx context.Context, adminID, userID string, plan model.Plan, expiresAt *time.Time) (*model.User, error) {
	if err := validateID("id", userID); err != nil {
		return nil, err
	}
	if !plan.IsValid() {
		return nil, invalid("plan", "must be one of free, premium, premiumPlus")
	}
	if plan == model.PlanFree {
		expiresAt = nil
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, invalid("expiresAt", "must be in the future")
	}

	user, err := s.store.SetUserPlan(ctx, userID, plan, expiresAt)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("set plan: %w", err)
	}
	s.logger.Info("user plan updated", "admin_id", adminID, "user_id", userID, "plan", plan)
	return user, nil
}

// ReportListOutput is one page of reports.
type ReportListOutput struct {
	Reports    []*model.Report
	NextCursor string
	HasMore    bool
}

// ListReports pages through the moderation queue.
func (s *AdminService) ListReports(ctx context.Context, status model.ReportStatus, cursor string, limit int) (*ReportListOutput, error) {
	if status != "" && !status.IsValid() {
		return nil, invalid("status", "is not a valid report status")
	}
	reports, next, err := s.store.ListReports(ctx, repository.ReportFilter{Status: status}, cursor, clampLimit(limit, DefaultAdminLimit, MaxAdminLimit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, invalid("cursor", "is invalid")
		}
		return nil, err
	}
	if reports == nil {
		reports = []*model.Report{}
	}
	return &ReportListOutput{Reports: reports, NextCursor: next, HasMore: next != ""}, nil
}

// UpdateReport moves a report through moderation.
func (s *AdminService) UpdateReport(ctx context.Context, adminID, reportID string, status model.ReportStatus) (*model.Report, error) {
	if err := validateID("id", reportID); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, invalid("status", "is not a valid report status")
	}
	report, err := s.store.UpdateReportStatus(ctx, reportID, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReportNotFound):
			return nil, ErrReportNotFound
		case errors.Is(err, repository.ErrReportExists):
			return nil, ErrReportExists
		}
		return nil, err
	}
	s.logger.Info("report updated", "admin_id", adminID, "report_id", reportID, "status", status)
	return report, nil
}
