package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/model"
)

func idPool(n int) []string {
	pool := make([]string, n)
	for i := range pool {
		pool[i] = fmt.Sprintf("cand-%03d", i)
	}
	return pool
}

func TestSamplePicks_Deterministic(t *testing.T) {
	t.Parallel()

	pool := idPool(100)
	first := SamplePicks(pool, 10, "u1", "2026-03-15")
	second := SamplePicks(pool, 10, "u1", "2026-03-15")
	assert.Equal(t, first, second)
	assert.Len(t, first, 10)

	reversed := slices.Clone(pool)
	slices.Reverse(reversed)
	assert.Equal(t, first, SamplePicks(reversed, 10, "u1", "2026-03-15"), "pool order must not matter")

	assert.Equal(t, idPool(100), pool, "input is not mutated")
}

func TestSamplePicks_VariesBySeed(t *testing.T) {
	t.Parallel()

	pool := idPool(100)
	base := SamplePicks(pool, len(pool), "u1", "2026-03-15")
	assert.NotEqual(t, base, SamplePicks(pool, len(pool), "u1", "2026-03-16"))
	assert.NotEqual(t, base, SamplePicks(pool, len(pool), "u2", "2026-03-15"))
	assert.ElementsMatch(t, pool, base)
}

func TestSamplePicks_Bounds(t *testing.T) {
	t.Parallel()

	assert.Len(t, SamplePicks(idPool(3), 10, "u1", "d"), 3)
	assert.Empty(t, SamplePicks(idPool(3), 0, "u1", "d"))
	assert.Empty(t, SamplePicks(idPool(3), -1, "u1", "d"))
	assert.Empty(t, SamplePicks(nil, 5, "u1", "d"))
}

func newPicksHarness(t *testing.T, plan model.Plan, candidates int) *harness {
	t.Helper()

	h := newHarness(t)
	h.addMember("me", plan, model.GenderMale, model.PreferFemale)
	for i := range candidates {
		h.addMember(fmt.Sprintf("f%02d", i), model.PlanFree, model.GenderFemale, model.PreferMale)
	}
	h.addMember("m1", model.PlanFree, model.GenderMale, model.PreferFemale)
	h.addMember("picky", model.PlanFree, model.GenderFemale, model.PreferFemale)
	return h
}

func TestQuickPickService_Today(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanFree, 12)
	ctx := context.Background()

	picks, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	require.Len(t, picks, model.LimitsFor(model.PlanFree).DailyQuickPicks)
	for _, p := range picks {
		assert.Equal(t, "2026-03-15", p.Day)
		assert.Equal(t, model.GenderFemale, p.Profile.Gender)
		assert.NotEqual(t, "picky", p.Profile.UserID)
	}

	again, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, picks, again)

	snap := h.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheMisses["quickpicks"])
	assert.Equal(t, uint64(1), snap.CacheHits["quickpicks"])
}

func TestQuickPickService_TodayRespectsPartnerAge(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanPremium, 3)
	h.store.profiles["f00"].PartnerAgeMax = intPtr(25)

	picks, err := h.picks.Today(context.Background(), "me")
	require.NoError(t, err)
	ids := make([]string, len(picks))
	for i, p := range picks {
		ids[i] = p.Profile.UserID
	}
	assert.ElementsMatch(t, []string{"f01", "f02"}, ids)
}

func TestQuickPickService_TodayIncompleteProfile(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanFree, 3)
	h.store.profiles["me"].AboutMe = ""

	_, err := h.picks.Today(context.Background(), "me")
	assert.ErrorIs(t, err, ErrProfileIncomplete)
}

func TestQuickPickService_ConcurrentGeneration(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanFree, 20)
	h.picks.cache = nil

	var wg sync.WaitGroup
	results := make([][]model.QuickPick, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			picks, err := h.picks.Today(context.Background(), "me")
			assert.NoError(t, err)
			results[i] = picks
		}()
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestQuickPickService_Act(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanFree, 8)
	ctx := context.Background()

	picks, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(picks), 2)
	liked, skipped := picks[0].Profile.UserID, picks[1].Profile.UserID

	_, err = h.picks.Act(ctx, "me", "m1", model.QuickPickLike)
	assert.ErrorIs(t, err, ErrNotInQuickPicks)

	_, err = h.picks.Act(ctx, "me", liked, "superlike")
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := h.picks.Act(ctx, "me", liked, model.QuickPickLike)
	require.NoError(t, err)
	require.NotNil(t, res.Interest)
	assert.Equal(t, liked, res.Interest.Interest.ToUserID)
	assert.Equal(t, 1, h.rec.notificationsFor(liked, model.NotifyNewInterest))

	res, err = h.picks.Act(ctx, "me", skipped, model.QuickPickSkip)
	require.NoError(t, err)
	assert.Nil(t, res.Interest)

	require.Len(t, h.store.actions, 2)

	remaining, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	assert.Len(t, remaining, len(picks)-2)

	_, err = h.picks.Act(ctx, "me", liked, model.QuickPickLike)
	assert.ErrorIs(t, err, ErrNotInQuickPicks, "acted picks leave today's list")
}

func TestQuickPickService_TodayDropsBlockedAndBanned(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanPremium, 3)
	ctx := context.Background()

	picks, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	require.Len(t, picks, 3)

	_, err = h.safety.Block(ctx, "f00", "me")
	require.NoError(t, err)
	h.store.users["f01"].Banned = true

	picks, err = h.picks.Today(ctx, "me")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "f02", picks[0].Profile.UserID)

	_, err = h.picks.Act(ctx, "me", "f01", model.QuickPickLike)
	assert.ErrorIs(t, err, ErrNotInQuickPicks)

	h.store.users["f01"].Banned = false
	picks, err = h.picks.Today(ctx, "me")
	require.NoError(t, err)
	assert.Len(t, picks, 2, "an unbanned pick returns for the rest of the day")
}

func TestQuickPickService_TodayDropsHiddenForFreeViewers(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanPremium, 2)
	ctx := context.Background()

	_, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)

	h.store.profiles["f00"].HideFromFreeUsers = true
	h.store.users["me"].Plan = model.PlanFree

	picks, err := h.picks.Today(ctx, "me")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "f01", picks[0].Profile.UserID)
}

func TestQuickPickService_GenerationSeedsCandidatePool(t *testing.T) {
	t.Parallel()

	h := newPicksHarness(t, model.PlanFree, 3)
	_, err := h.picks.Today(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, "me|2026-03-15", h.store.lastPickFilter.Seed)
	assert.Equal(t, candidatePoolSize, h.store.lastPickFilter.Limit)
}
