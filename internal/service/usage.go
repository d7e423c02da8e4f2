package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// History window bounds in days.
const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 90
)

// UsageService tracks plan quotas.
type UsageService struct {
	store   UsageStore
	users   UserReader
	metrics metrics.Recorder
	now     func() time.Time
}

// NewUsageService creates a new UsageService.
func NewUsageService(store UsageStore, users UserReader, recorder metrics.Recorder) *UsageService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UsageService{
		store:   store,
		users:   users,
		metrics: recorder,
		now:     time.Now,
	}
}

// PlanOf returns the plan in force for the user right now.
func (s *UsageService) PlanOf(ctx context.Context, userID string) (model.Plan, error) {
	user, err := loadActiveUser(ctx, s.users, userID)
	if err != nil {
		return "", err
	}
	return user.EffectivePlan(s.now()), nil
}

// Quota builds the counter descriptor a metered write consumes.
func (s *UsageService) Quota(plan model.Plan, feature model.Feature, now time.Time) repository.UsageQuota {
	limit := model.LimitFor(plan, feature)
	return repository.UsageQuota{
		Feature:     feature,
		Limit:       limit.Limit,
		PeriodStart: model.PeriodStart(limit.Period, now),
		Now:         now,
	}
}

// Check returns the quota state of one feature.
func (s *UsageService) Check(ctx context.Context, userID string, feature model.Feature) (*model.UsageStatus, error) {
	plan, err := s.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	status, err := s.status(ctx, userID, plan, feature, now)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Consume increments the counter for feature, or returns a *QuotaError.
func (s *UsageService) Consume(ctx context.Context, userID string, feature model.Feature) (*model.UsageStatus, error) {
	plan, err := s.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.consume(ctx, userID, plan, feature)
}

func (s *UsageService) consume(ctx context.Context, userID string, plan model.Plan, feature model.Feature) (*model.UsageStatus, error) {
	now := s.now().UTC()
	used, err := s.store.ConsumeUsage(ctx, userID, s.Quota(plan, feature, now))
	if err != nil {
		return nil, s.translate(ctx, err, userID, plan, feature, now)
	}
	s.metrics.IncQuotaConsumed(string(feature))

	status := model.NewUsageStatus(feature, model.LimitFor(plan, feature), used, now)
	return &status, nil
}

// Summary returns the state of every metered feature.
func (s *UsageService) Summary(ctx context.Context, userID string) (*model.UsageSummary, error) {
	plan, err := s.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	summary := &model.UsageSummary{Plan: plan, Features: make([]model.UsageStatus, 0, len(model.ValidFeatures))}
	for _, feature := range model.ValidFeatures {
		status, err := s.status(ctx, userID, plan, feature, now)
		if err != nil {
			return nil, err
		}
		summary.Features = append(summary.Features, status)
	}
	return summary, nil
}

// History returns per-day counts for the last days days, oldest first.
// Days without usage are included with empty counts.
func (s *UsageService) History(ctx context.Context, userID string, days int) ([]model.UsageDay, error) {
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, invalid("days", fmt.Sprintf("must be between 1 and %d", MaxHistoryDays))
	}

	today := model.PeriodStart(model.PeriodDaily, s.now())
	since := today.AddDate(0, 0, -(days - 1))

	raw, err := s.store.GetUsageHistory(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	history := make([]model.UsageDay, 0, days)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		counts := raw[key]
		if counts == nil {
			counts = map[model.Feature]int{}
		}
		history = append(history, model.UsageDay{Date: key, Counts: counts})
	}
	return history, nil
}

func (s *UsageService) status(ctx context.Context, userID string, plan model.Plan, feature model.Feature, now time.Time) (model.UsageStatus, error) {
	limit := model.LimitFor(plan, feature)
	used, err := s.store.GetUsageCount(ctx, userID, feature, model.PeriodStart(limit.Period, now))
	if err != nil {
		return model.UsageStatus{}, err
	}
	return model.NewUsageStatus(feature, limit, used, now), nil
}

// translate maps repository.ErrQuotaReached to a *QuotaError and passes other
// errors through.
func (s *UsageService) translate(ctx context.Context, err error, userID string, plan model.Plan, feature model.Feature, now time.Time) error {
	if !errors.Is(err, repository.ErrQuotaReached) {
		return err
	}
	s.metrics.IncQuotaRejected(string(feature))

	limit := model.LimitFor(plan, feature)
	used, cerr := s.store.GetUsageCount(ctx, userID, feature, model.PeriodStart(limit.Period, now))
	if cerr != nil {
		used = limit.Limit
	}
	return &QuotaError{
		Feature: feature,
		Plan:    plan,
		Limit:   limit.Limit,
		Used:    used,
		ResetAt: model.PeriodEnd(limit.Period, now),
	}
}

// loadActiveUser fetches a user and rejects deleted or banned accounts.
func loadActiveUser(ctx context.Context, users UserReader, userID string) (*model.User, error) {
	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Banned {
		return nil, ErrAccountBanned
	}
	return user, nil
}

// recordConsumed counts a unit consumed inside another service's transaction.
func (s *UsageService) recordConsumed(feature model.Feature) {
	s.metrics.IncQuotaConsumed(string(feature))
}
