package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	store    *fakeStore
	cache    *fakeCache
	rec      *recorder
	metrics  *metrics.InMemoryRecorder
	clock    time.Time
	usage    *UsageService
	auth     *AuthService
	profiles *ProfileService
	interest *InterestService
	messages *MessageService
	picks    *QuickPickService
	short    *ShortlistService
	safety   *SafetyService
	admin    *AdminService
	notify   *NotificationService
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   newFakeStore(),
		cache:   newFakeCache(),
		rec:     &recorder{},
		metrics: metrics.NewInMemory(),
		clock:   fixedNow,
	}
	now := func() time.Time { return h.clock }
	logger := quietLogger()

	h.usage = NewUsageService(h.store, h.store, h.metrics)
	h.usage.now = now

	issuer := auth.NewTokenIssuer("test-secret-that-is-long-enough-1234567890", "aroosi", 15*time.Minute)
	h.auth = NewAuthService(h.store, h.cache, h.cache, h.rec, issuer, 30*24*time.Hour, logger)
	h.auth.now = now

	h.profiles = NewProfileService(h.store, h.store, h.usage, ProfileDeps{
		Cache:   h.cache,
		Views:   h.rec,
		Metrics: h.metrics,
		Logger:  logger,
	})
	h.profiles.now = now

	h.interest = NewInterestService(h.store, h.store, h.usage, h.rec, h.rec, logger)
	h.interest.now = now

	h.messages = NewMessageService(h.store, h.usage, h.rec, h.rec, h.cache, logger)
	h.messages.now = now

	h.picks = NewQuickPickService(h.store, h.cache, h.usage, h.interest, h.metrics, logger)
	h.picks.now = now

	h.short = NewShortlistService(h.store, h.usage)
	h.short.now = now

	h.safety = NewSafetyService(h.store, h.rec, h.cache, logger)
	h.safety.now = now

	h.admin = NewAdminService(h.store, h.cache, h.cache, 15*time.Minute, logger)
	h.admin.now = now

	h.notify = NewNotificationService(h.store, logger)
	h.notify.now = now

	return h
}

func (h *harness) addUser(id string, plan model.Plan) *model.User {
	u := &model.User{
		ID:        id,
		Email:     id + "@example.com",
		Role:      model.RoleUser,
		Plan:      plan,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	h.store.users[id] = u
	return u
}

func (h *harness) addProfile(id string, gender model.Gender, pref model.PreferredGender) *model.Profile {
	p := &model.Profile{
		UserID:          id,
		FullName:        "User " + id,
		Gender:          gender,
		PreferredGender: pref,
		DateOfBirth:     time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC),
		City:            "London",
		Country:         "UK",
		AboutMe:         "Hello there",
		Images:          []string{"https://cdn.example.com/" + id + ".jpg"},
		CreatedAt:       fixedNow,
		UpdatedAt:       fixedNow,
	}
	h.store.profiles[id] = p
	return p
}

// addMember creates a user with a complete profile.
func (h *harness) addMember(id string, plan model.Plan, gender model.Gender, pref model.PreferredGender) {
	h.addUser(id, plan)
	h.addProfile(id, gender, pref)
}

// matchPair creates an active match between a and b and returns its conversation id.
func (h *harness) matchPair(a, b string) string {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.createMatchLocked(a, b, fixedNow).ConversationID
}
