package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// ShortlistService manages private bookmarks.
type ShortlistService struct {
	store ShortlistStore
	usage *UsageService
	now   func() time.Time
}

// NewShortlistService creates a new ShortlistService.
func NewShortlistService(store ShortlistStore, usage *UsageService) *ShortlistService {
	return &ShortlistService{store: store, usage: usage, now: time.Now}
}

// Add bookmarks targetID. Capacity depends on the caller's plan.
func (s *ShortlistService) Add(ctx context.Context, userID, targetID, note string) (*model.ShortlistEntry, error) {
	if err := validateID("toUserId", targetID); err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, ErrSelfAction
	}
	note = strings.TrimSpace(note)
	if err := validateLength("note", note, 0, MaxShortlistNote); err != nil {
		return nil, err
	}

	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	visible, err := s.store.VisibleProfileIDs(ctx, userID, []string{targetID}, !plan.IsPaid())
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, ErrProfileNotFound
	}
	target, err := s.store.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	now := s.now().UTC()
	entry := &model.ShortlistEntry{
		UserID:            userID,
		ShortlistedUserID: targetID,
		Note:              note,
		CreatedAt:         now,
	}
	if err := s.store.AddShortlist(ctx, entry, model.LimitsFor(plan).ShortlistCapacity); err != nil {
		switch {
		case errors.Is(err, repository.ErrShortlistFull):
			return nil, ErrShortlistFull
		case errors.Is(err, repository.ErrShortlistExists):
			return nil, ErrShortlistExists
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("add shortlist entry: %w", err)
	}

	summary := target.Summary(now)
	entry.Profile = &summary
	return entry, nil
}

// Remove deletes a bookmark.
func (s *ShortlistService) Remove(ctx context.Context, userID, targetID string) error {
	if err := validateID("userId", targetID); err != nil {
		return err
	}
	if err := s.store.RemoveShortlist(ctx, userID, targetID); err != nil {
		if errors.Is(err, repository.ErrShortlistNotFound) {
			return ErrShortlistNotFound
		}
		return err
	}
	return nil
}

// List returns the caller's bookmarks with profile cards. Entries the caller
// can no longer see (blocked, banned, deleted or hidden from their plan) are
// left in place but not returned.
func (s *ShortlistService) List(ctx context.Context, userID string) ([]*model.ShortlistEntry, error) {
	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListShortlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ShortlistedUserID
	}
	visible, err := s.store.VisibleProfileIDs(ctx, userID, ids, !plan.IsPaid())
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.GetProfiles(ctx, visible)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]*model.ShortlistEntry, 0, len(entries))
	for _, e := range entries {
		p, ok := profiles[e.ShortlistedUserID]
		if !ok {
			continue
		}
		summary := p.Summary(now)
		e.Profile = &summary
		out = append(out, e)
	}
	return out, nil
}
