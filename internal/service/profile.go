package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/cache"
	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// Search page bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
	MaxViewersLimit    = 100
)

// ProfileService manages profiles, discovery and boosts.
type ProfileService struct {
	store   ProfileStore
	users   UserReader
	usage   *UsageService
	cache   ProfileCache
	views   ViewPublisher
	images  ImageValidator
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// ProfileDeps groups optional collaborators of ProfileService.
type ProfileDeps struct {
	Cache   ProfileCache
	Views   ViewPublisher
	Images  ImageValidator
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store ProfileStore, users UserReader, usage *UsageService, deps ProfileDeps) *ProfileService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &ProfileService{
		store:   store,
		users:   users,
		usage:   usage,
		cache:   deps.Cache,
		views:   deps.Views,
		images:  deps.Images,
		metrics: deps.Metrics,
		logger:  deps.Logger.With("component", "profile"),
		now:     time.Now,
	}
}

// ProfileInput is the full set of editable profile fields.
type ProfileInput struct {
	FullName          string
	Gender            model.Gender
	PreferredGender   model.PreferredGender
	DateOfBirth       time.Time
	City              string
	Country           string
	Religion          string
	MotherTongue      string
	Languages         []string
	Education         string
	Occupation        string
	HeightCm          *int
	MaritalStatus     model.MaritalStatus
	AboutMe           string
	PhoneNumber       string
	Images            []string
	PartnerAgeMin     *int
	PartnerAgeMax     *int
	HideFromFreeUsers bool
}

// ProfileUpdate carries a partial update. Nil fields are left unchanged.
// OptionalInt is a PATCH field that is left alone, set, or cleared with a nil Value.
type OptionalInt struct {
	Set   bool
	Value *int
}

type ProfileUpdate struct {
	FullName          *string
	Gender            *model.Gender
	PreferredGender   *model.PreferredGender
	DateOfBirth       *time.Time
	City              *string
	Country           *string
	Religion          *string
	MotherTongue      *string
	Languages         *[]string
	Education         *string
	Occupation        *string
	HeightCm          OptionalInt
	MaritalStatus     *model.MaritalStatus
	AboutMe           *string
	PhoneNumber       *string
	Images            *[]string
	PartnerAgeMin     OptionalInt
	PartnerAgeMax     OptionalInt
	HideFromFreeUsers *bool
}

// Create stores the caller's profile.
func (s *ProfileService) Create(ctx context.Context, userID string, in ProfileInput) (*model.Profile, error) {
	user, err := loadActiveUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Profile{
		UserID:            userID,
		FullName:          strings.TrimSpace(in.FullName),
		Gender:            in.Gender,
		PreferredGender:   in.PreferredGender,
		DateOfBirth:       in.DateOfBirth,
		City:              strings.TrimSpace(in.City),
		Country:           strings.TrimSpace(in.Country),
		Religion:          strings.TrimSpace(in.Religion),
		MotherTongue:      strings.TrimSpace(in.MotherTongue),
		Languages:         trimAll(in.Languages),
		Education:         strings.TrimSpace(in.Education),
		Occupation:        strings.TrimSpace(in.Occupation),
		HeightCm:          in.HeightCm,
		MaritalStatus:     in.MaritalStatus,
		AboutMe:           strings.TrimSpace(in.AboutMe),
		PhoneNumber:       strings.TrimSpace(in.PhoneNumber),
		Images:            trimAll(in.Images),
		PartnerAgeMin:     in.PartnerAgeMin,
		PartnerAgeMax:     in.PartnerAgeMax,
		HideFromFreeUsers: in.HideFromFreeUsers,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.validate(ctx, p, user.EffectivePlan(now), now); err != nil {
		return nil, err
	}

	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			return nil, ErrProfileExists
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// Get returns the caller's own profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return s.load(ctx, userID)
}

// Update applies a partial update to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.Profile, error) {
	user, err := loadActiveUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	applyUpdate(p, in)
	now := s.now().UTC()
	p.UpdatedAt = now
	if err := s.validate(ctx, p, user.EffectivePlan(now), now); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.invalidate(ctx, userID)
	return p, nil
}

// View returns another user's profile, consuming profile_view quota.
// Hidden, blocked, banned and missing targets all look like ErrProfileNotFound.
func (s *ProfileService) View(ctx context.Context, viewerID, targetID string) (*model.Profile, error) {
	if err := validateID("userId", targetID); err != nil {
		return nil, err
	}
	if viewerID == targetID {
		return s.load(ctx, viewerID)
	}

	plan, err := s.usage.PlanOf(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	if _, err := loadActiveUser(ctx, s.users, targetID); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAccountBanned) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	p, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.store.IsBlockedEither(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked || (p.HideFromFreeUsers && !plan.IsPaid()) {
		return nil, ErrProfileNotFound
	}

	if _, err := s.usage.consume(ctx, viewerID, plan, model.FeatureProfileView); err != nil {
		return nil, err
	}

	if s.views != nil {
		s.views.PublishProfileView(ctx, &model.ProfileView{
			ID:       ulid.Make().String(),
			ViewerID: viewerID,
			ViewedID: targetID,
			ViewedAt: s.now().UTC(),
		})
	}
	return p, nil
}

// SearchInput holds search filters and paging.
type SearchInput struct {
	Gender        model.Gender
	AgeMin        int
	AgeMax        int
	City          string
	Country       string
	Religion      string
	MotherTongue  string
	MaritalStatus model.MaritalStatus
	Cursor        string
	Limit         int
}

// SearchResult is one page of search results.
type SearchResult struct {
	Profiles   []model.ProfileSummary
	NextCursor string
	HasMore    bool
}

// Search lists visible profiles, boosted first. Only the first page is metered.
func (s *ProfileService) Search(ctx context.Context, viewerID string, in SearchInput) (*SearchResult, error) {
	if in.Gender != "" && !in.Gender.IsValid() {
		return nil, invalid("gender", "is not a valid gender")
	}
	if in.MaritalStatus != "" && !in.MaritalStatus.IsValid() {
		return nil, invalid("maritalStatus", "is not a valid marital status")
	}
	if in.AgeMin != 0 && (in.AgeMin < model.MinAge || in.AgeMin > model.MaxAge) {
		return nil, invalid("ageMin", fmt.Sprintf("must be between %d and %d", model.MinAge, model.MaxAge))
	}
	if in.AgeMax != 0 && (in.AgeMax < model.MinAge || in.AgeMax > model.MaxAge) {
		return nil, invalid("ageMax", fmt.Sprintf("must be between %d and %d", model.MinAge, model.MaxAge))
	}
	if in.AgeMin != 0 && in.AgeMax != 0 && in.AgeMin > in.AgeMax {
		return nil, invalid("ageMin", "must not exceed ageMax")
	}
	limit := clampLimit(in.Limit, DefaultSearchLimit, MaxSearchLimit)

	plan, err := s.usage.PlanOf(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	filter := repository.ProfileFilter{
		ViewerID:      viewerID,
		ViewerIsFree:  !plan.IsPaid(),
		Gender:        in.Gender,
		AgeMin:        in.AgeMin,
		AgeMax:        in.AgeMax,
		City:          strings.TrimSpace(in.City),
		Country:       strings.TrimSpace(in.Country),
		Religion:      strings.TrimSpace(in.Religion),
		MotherTongue:  strings.TrimSpace(in.MotherTongue),
		MaritalStatus: in.MaritalStatus,
		Now:           now,
	}
	profiles, next, err := s.store.SearchProfiles(ctx, filter, in.Cursor, limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, invalid("cursor", "is invalid")
		}
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	// A failed query does not count against the quota.
	if in.Cursor == "" {
		if _, err := s.usage.consume(ctx, viewerID, plan, model.FeatureSearchPerformed); err != nil {
			return nil, err
		}
	}

	out := &SearchResult{
		Profiles:   make([]model.ProfileSummary, len(profiles)),
		NextCursor: next,
		HasMore:    next != "",
	}
	for i, p := range profiles {
		out.Profiles[i] = p.Summary(now)
	}
	return out, nil
}

// Viewers lists who recently viewed the caller. Requires a plan with viewer access.
func (s *ProfileService) Viewers(ctx context.Context, userID string, limit int) ([]model.ProfileViewer, error) {
	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !model.LimitsFor(plan).CanSeeViewers {
		return nil, ErrUpgradeRequired
	}

	views, err := s.store.ListProfileViewers(ctx, userID, clampLimit(limit, DefaultSearchLimit, MaxViewersLimit))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ViewerID
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]model.ProfileViewer, 0, len(views))
	for _, v := range views {
		p, ok := profiles[v.ViewerID]
		if !ok {
			continue
		}
		out = append(out, model.ProfileViewer{Profile: p.Summary(now), ViewedAt: v.ViewedAt})
	}
	return out, nil
}

// BoostResult reports an applied boost.
type BoostResult struct {
	BoostedUntil    time.Time
	RemainingBoosts int
	Unlimited       bool
}

// Boost pushes the caller's profile to the top of search for model.BoostDuration.
func (s *ProfileService) Boost(ctx context.Context, userID string) (*BoostResult, error) {
	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if !p.IsComplete() {
		return nil, ErrProfileIncomplete
	}

	now := s.now().UTC()
	if p.IsBoosted(now) {
		return nil, ErrAlreadyBoosted
	}
	until := now.Add(model.BoostDuration)
	quota := s.usage.Quota(plan, model.FeatureProfileBoostUsed, now)

	used, err := s.store.BoostProfile(ctx, userID, until, quota)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyBoosted):
			return nil, ErrAlreadyBoosted
		case errors.Is(err, repository.ErrProfileNotFound):
			return nil, ErrProfileNotFound
		case errors.Is(err, repository.ErrQuotaReached):
			return nil, s.usage.translate(ctx, err, userID, plan, model.FeatureProfileBoostUsed, now)
		}
		return nil, fmt.Errorf("boost profile: %w", err)
	}
	s.usage.recordConsumed(model.FeatureProfileBoostUsed)
	s.invalidate(ctx, userID)

	result := &BoostResult{BoostedUntil: until, Unlimited: quota.Limit < 0}
	if !result.Unlimited {
		result.RemainingBoosts = max(quota.Limit-used, 0)
	}
	s.logger.Info("profile boosted", "user_id", userID, "until", until)
	return result, nil
}

// load reads a profile through the cache.
func (s *ProfileService) load(ctx context.Context, userID string) (*model.Profile, error) {
	if s.cache != nil {
		p, err := s.cache.GetProfile(ctx, userID)
		if err == nil {
			s.metrics.IncCacheHit("profile")
			return p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		}
		s.metrics.IncCacheMiss("profile")
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, p); err != nil {
			s.logger.Warn("profile cache write failed", "user_id", userID, "error", err)
		}
	}
	return p, nil
}

func (s *ProfileService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteProfile(ctx, userID); err != nil {
		s.logger.Warn("profile cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (s *ProfileService) validate(ctx context.Context, p *model.Profile, plan model.Plan, now time.Time) error {
	if err := validateProfileFields(p, now); err != nil {
		return err
	}
	if p.HideFromFreeUsers && !model.LimitsFor(plan).CanHideFromFree {
		return ErrUpgradeRequired
	}
	if s.images != nil && len(p.Images) > 0 {
		if idx, err := s.images.ValidateImageURLs(ctx, p.Images); err != nil {
			return invalid(fmt.Sprintf("images[%d]", idx), err.Error())
		}
	}
	return nil
}

// validateProfileFields checks ranges, lengths and enums of a merged profile.
func validateProfileFields(p *model.Profile, now time.Time) error {
	if err := validateLength("fullName", p.FullName, MinFullNameLength, MaxFullNameLength); err != nil {
		return err
	}
	if !p.Gender.IsValid() {
		return invalid("gender", "must be one of male, female, other")
	}
	if !p.PreferredGender.IsValid() {
		return invalid("preferredGender", "must be one of male, female, any")
	}
	if p.DateOfBirth.IsZero() {
		return invalid("dateOfBirth", "is required")
	}
	if age := model.AgeAt(p.DateOfBirth, now); age < model.MinAge || age > model.MaxAge {
		return invalid("dateOfBirth", fmt.Sprintf("age must be between %d and %d", model.MinAge, model.MaxAge))
	}

	for _, f := range []struct{ field, value string }{
		{"city", p.City},
		{"country", p.Country},
		{"religion", p.Religion},
		{"motherTongue", p.MotherTongue},
		{"education", p.Education},
		{"occupation", p.Occupation},
	} {
		if err := validateLength(f.field, f.value, 0, MaxShortTextLength); err != nil {
			return err
		}
	}

	if len(p.Languages) > MaxLanguages {
		return invalid("languages", fmt.Sprintf("must have at most %d entries", MaxLanguages))
	}
	for _, lang := range p.Languages {
		if err := validateLength("languages", lang, 1, MaxShortTextLength); err != nil {
			return err
		}
	}
	if p.HeightCm != nil && (*p.HeightCm < MinHeightCm || *p.HeightCm > MaxHeightCm) {
		return invalid("heightCm", fmt.Sprintf("must be between %d and %d", MinHeightCm, MaxHeightCm))
	}
	if p.MaritalStatus != "" && !p.MaritalStatus.IsValid() {
		return invalid("maritalStatus", "is not a valid marital status")
	}
	if err := validateLength("aboutMe", p.AboutMe, 0, MaxAboutMeLength); err != nil {
		return err
	}
	if err := ValidatePhone(p.PhoneNumber); err != nil {
		return err
	}
	if len(p.Images) > model.MaxProfileImages {
		return invalid("images", fmt.Sprintf("must have at most %d entries", model.MaxProfileImages))
	}
	for _, bound := range []struct {
		field string
		value *int
	}{{"partnerAgeMin", p.PartnerAgeMin}, {"partnerAgeMax", p.PartnerAgeMax}} {
		if bound.value != nil && (*bound.value < model.MinAge || *bound.value > model.MaxAge) {
			return invalid(bound.field, fmt.Sprintf("must be between %d and %d", model.MinAge, model.MaxAge))
		}
	}
	if p.PartnerAgeMin != nil && p.PartnerAgeMax != nil && *p.PartnerAgeMin > *p.PartnerAgeMax {
		return invalid("partnerAgeMin", "must not exceed partnerAgeMax")
	}
	return nil
}

func applyUpdate(p *model.Profile, in ProfileUpdate) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&p.FullName, in.FullName)
	setString(&p.City, in.City)
	setString(&p.Country, in.Country)
	setString(&p.Religion, in.Religion)
	setString(&p.MotherTongue, in.MotherTongue)
	setString(&p.Education, in.Education)
	setString(&p.Occupation, in.Occupation)
	setString(&p.AboutMe, in.AboutMe)
	setString(&p.PhoneNumber, in.PhoneNumber)

	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.PreferredGender != nil {
		p.PreferredGender = *in.PreferredGender
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = *in.DateOfBirth
	}
	if in.Languages != nil {
		p.Languages = trimAll(*in.Languages)
	}
	if in.HeightCm.Set {
		p.HeightCm = in.HeightCm.Value
	}
	if in.MaritalStatus != nil {
		p.MaritalStatus = *in.MaritalStatus
	}
	if in.Images != nil {
		p.Images = trimAll(*in.Images)
	}
	if in.PartnerAgeMin.Set {
		p.PartnerAgeMin = in.PartnerAgeMin.Value
	}
	if in.PartnerAgeMax.Set {
		p.PartnerAgeMax = in.PartnerAgeMax.Value
	}
	if in.HideFromFreeUsers != nil {
		p.HideFromFreeUsers = *in.HideFromFreeUsers
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
