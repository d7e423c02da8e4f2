package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aroosi/aroosi-api/internal/cache"
	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// candidatePoolSize bounds how many eligible profiles are sampled from.
const candidatePoolSize = 1000

// QuickPickService builds the deterministic daily selection.
type QuickPickService struct {
	store     QuickPickStore
	cache     QuickPickCache
	usage     *UsageService
	interests *InterestService
	group     singleflight.Group
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewQuickPickService creates a new QuickPickService. quickCache may be nil.
func NewQuickPickService(store QuickPickStore, quickCache QuickPickCache, usage *UsageService, interests *InterestService, recorder metrics.Recorder, logger *slog.Logger) *QuickPickService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuickPickService{
		store:     store,
		cache:     quickCache,
		usage:     usage,
		interests: interests,
		metrics:   recorder,
		logger:    logger.With("component", "quickpick"),
		now:       time.Now,
	}
}

// Today returns the caller's picks for the current UTC day.
func (s *QuickPickService) Today(ctx context.Context, userID string) ([]model.QuickPick, error) {
	now := s.now().UTC()
	day := model.QuickPickDay(now)

	ids, err := s.visiblePicks(ctx, userID, day, now)
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	picks := make([]model.QuickPick, 0, len(ids))
	for _, id := range ids {
		if p, ok := profiles[id]; ok {
			picks = append(picks, model.QuickPick{Day: day, Profile: p.Summary(now)})
		}
	}
	return picks, nil
}

// ActionResult reports what a quick-pick action did.
type ActionResult struct {
	Action model.QuickPickActionType
	// Interest is set for likes.
	Interest *SendResult
}

// Act records a like or skip on one of today's picks. A like sends an
// interest and is subject to the interest quota.
func (s *QuickPickService) Act(ctx context.Context, userID, targetID string, action model.QuickPickActionType) (*ActionResult, error) {
	if err := validateID("userId", targetID); err != nil {
		return nil, err
	}
	if !action.IsValid() {
		return nil, invalid("action", "must be like or skip")
	}

	now := s.now().UTC()
	day := model.QuickPickDay(now)
	ids, err := s.visiblePicks(ctx, userID, day, now)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ids, targetID) {
		return nil, ErrNotInQuickPicks
	}

	result := &ActionResult{Action: action}
	if action == model.QuickPickLike {
		sent, err := s.interests.Send(ctx, userID, targetID)
		if err != nil {
			return nil, err
		}
		result.Interest = sent
	}

	err = s.store.RecordQuickPickAction(ctx, &model.QuickPickAction{
		UserID:       userID,
		TargetUserID: targetID,
		Action:       action,
		Day:          day,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("record quick pick action: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.RemoveQuickPick(ctx, userID, day, targetID); err != nil {
			s.logger.Warn("quick pick cache update failed", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

// visiblePicks returns today's ids minus anyone blocked, banned, deleted or
// hidden since the selection was made. The selection itself is not rewritten.
func (s *QuickPickService) visiblePicks(ctx context.Context, userID, day string, now time.Time) ([]string, error) {
	ids, err := s.pickIDs(ctx, userID, day, now)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	visible, err := s.store.VisibleProfileIDs(ctx, userID, ids, !plan.IsPaid())
	if err != nil {
		return nil, fmt.Errorf("filter quick picks: %w", err)
	}

	keep := make(map[string]bool, len(visible))
	for _, id := range visible {
		keep[id] = true
	}
	out := make([]string, 0, len(visible))
	for _, id := range ids {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// pickIDs returns cached ids or generates them once per user and day.
func (s *QuickPickService) pickIDs(ctx context.Context, userID, day string, now time.Time) ([]string, error) {
	if s.cache != nil {
		ids, err := s.cache.GetQuickPicks(ctx, userID, day)
		if err == nil {
			s.metrics.IncCacheHit("quickpicks")
			return ids, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("quick pick cache read failed", "user_id", userID, "error", err)
		}
		s.metrics.IncCacheMiss("quickpicks")
	}

	v, err, _ := s.group.Do(userID+"|"+day, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), userID, day, now)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *QuickPickService) generate(ctx context.Context, userID, day string, now time.Time) ([]string, error) {
	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	me, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileIncomplete
		}
		return nil, err
	}
	if !me.IsComplete() {
		return nil, ErrProfileIncomplete
	}

	filter := repository.QuickPickFilter{
		UserID:          userID,
		Gender:          me.Gender,
		PreferredGender: me.PreferredGender,
		ViewerIsFree:    !plan.IsPaid(),
		Now:             now,
		Limit:           candidatePoolSize,
		Seed:            userID + "|" + day,
	}
	if me.PartnerAgeMin != nil {
		filter.AgeMin = *me.PartnerAgeMin
	}
	if me.PartnerAgeMax != nil {
		filter.AgeMax = *me.PartnerAgeMax
	}

	candidates, err := s.store.ListQuickPickCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	myAge := me.Age(now)
	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.AcceptsPartnerAge(myAge) {
			pool = append(pool, c.UserID)
		}
	}
	ids := SamplePicks(pool, model.LimitsFor(plan).DailyQuickPicks, userID, day)

	if s.cache != nil {
		expireAt := model.PeriodEnd(model.PeriodDaily, now)
		if err := s.cache.SetQuickPicks(ctx, userID, day, ids, expireAt); err != nil {
			s.logger.Warn("quick pick cache write failed", "user_id", userID, "error", err)
		}
	}
	s.logger.Debug("quick picks generated", "user_id", userID, "day", day, "pool", len(pool), "picked", len(ids))
	return ids, nil
}

// SamplePicks returns up to n ids chosen from pool. The same user, day and
// pool always produce the same selection.
func SamplePicks(pool []string, n int, userID, day string) []string {
	sorted := slices.Clone(pool)
	slices.Sort(sorted)

	seed := pickSeed(userID, day)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(sorted), func(i, j int) { sorted[i], sorted[j] = sorted[j], sorted[i] })

	n = max(n, 0)
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func pickSeed(userID, day string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(userID + "|" + day))
	return h.Sum64()
}
