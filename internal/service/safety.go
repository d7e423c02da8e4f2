package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// SafetyService handles blocks and reports.
type SafetyService struct {
	store  SafetyStore
	events EventPublisher
	picks  QuickPickCache
	logger *slog.Logger
	now    func() time.Time
}

// NewSafetyService creates a new SafetyService. events and picks may be nil.
func NewSafetyService(store SafetyStore, events EventPublisher, picks QuickPickCache, logger *slog.Logger) *SafetyService {
	if events == nil {
		events = noopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SafetyService{
		store:  store,
		events: events,
		picks:  picks,
		logger: logger.With("component", "safety"),
		now:    time.Now,
	}
}

// Block hides targetID from the caller and vice versa, ending any active match.
// Blocking twice is not an error.
func (s *SafetyService) Block(ctx context.Context, userID, targetID string) (*model.Block, error) {
	if err := validateID("userId", targetID); err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, ErrSelfAction
	}
	if _, err := s.store.GetUserByID(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	block := &model.Block{BlockerID: userID, BlockedID: targetID, CreatedAt: s.now().UTC()}
	ended, err := s.store.BlockUser(ctx, block)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("block user: %w", err)
	}
	if ended != nil {
		s.events.Publish(ctx, targetID, model.Event{Type: model.EventMatch, Data: ended})
		s.logger.Info("match ended by block", "match_id", ended.ID)
	}
	s.evictPicks(ctx, userID, targetID, block.CreatedAt)
	return block, nil
}

// evictPicks drops each user from the other's quick picks for today.
func (s *SafetyService) evictPicks(ctx context.Context, a, b string, now time.Time) {
	if s.picks == nil {
		return
	}
	day := model.QuickPickDay(now)
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if err := s.picks.RemoveQuickPick(ctx, pair[0], day, pair[1]); err != nil {
			s.logger.Warn("quick pick eviction failed", "user_id", pair[0], "error", err)
		}
	}
}

// Unblock removes a block the caller created.
func (s *SafetyService) Unblock(ctx context.Context, userID, targetID string) error {
	if err := validateID("userId", targetID); err != nil {
		return err
	}
	if err := s.store.UnblockUser(ctx, userID, targetID); err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return ErrBlockNotFound
		}
		return err
	}
	return nil
}

// ListBlocked returns the users the caller blocked.
func (s *SafetyService) ListBlocked(ctx context.Context, userID string) ([]*model.Block, error) {
	blocks, err := s.store.ListBlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.BlockedID
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for _, b := range blocks {
		if p, ok := profiles[b.BlockedID]; ok {
			summary := p.Summary(now)
			b.Profile = &summary
		}
	}
	if blocks == nil {
		blocks = []*model.Block{}
	}
	return blocks, nil
}

// Report files a moderation report against targetID.
func (s *SafetyService) Report(ctx context.Context, userID, targetID string, reason model.ReportReason, description string) (*model.Report, error) {
	if err := validateID("userId", targetID); err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, ErrSelfAction
	}
	if !reason.IsValid() {
		return nil, invalid("reason", "is not a valid report reason")
	}
	description = strings.TrimSpace(description)
	if err := validateLength("description", description, 0, MaxReportDescription); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	report := &model.Report{
		ID:          ulid.Make().String(),
		ReporterID:  userID,
		ReportedID:  targetID,
		Reason:      reason,
		Description: description,
		Status:      model.ReportPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		switch {
		case errors.Is(err, repository.ErrReportExists):
			return nil, ErrReportExists
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.logger.Info("user reported", "report_id", report.ID, "reason", reason)
	return report, nil
}
