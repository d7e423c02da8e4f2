package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

const (
	defaultInterestLimit = 50
	maxInterestLimit     = 200
)

// InterestService handles interests and the matches they produce.
type InterestService struct {
	store    InterestStore
	users    UserReader
	usage    *UsageService
	notifier Notifier
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewInterestService creates a new InterestService. notifier and events may be nil.
func NewInterestService(store InterestStore, users UserReader, usage *UsageService, notifier Notifier, events EventPublisher, logger *slog.Logger) *InterestService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InterestService{
		store:    store,
		users:    users,
		usage:    usage,
		notifier: notifier,
		events:   events,
		logger:   logger.With("component", "interest"),
		now:      time.Now,
	}
}

// SendResult reports the outcome of Send.
type SendResult struct {
	Interest *model.Interest
	// Match is set when the target had already expressed interest.
	Match *model.Match
}

// Send expresses interest in toID. A pending reverse interest turns both into
// a match without consuming quota.
func (s *InterestService) Send(ctx context.Context, fromID, toID string) (*SendResult, error) {
	if err := validateID("toUserId", toID); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSelfAction
	}

	plan, err := s.usage.PlanOf(ctx, fromID)
	if err != nil {
		return nil, err
	}

	sender, err := s.store.GetProfile(ctx, fromID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileIncomplete
		}
		return nil, err
	}
	if !sender.IsComplete() {
		return nil, ErrProfileIncomplete
	}
	if err := s.checkTarget(ctx, fromID, toID, plan); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	in := &model.Interest{
		ID:         ulid.Make().String(),
		FromUserID: fromID,
		ToUserID:   toID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := s.store.SendInterest(ctx, in, s.usage.Quota(plan, model.FeatureInterestSent, now))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInterestExists):
			return nil, ErrInterestExists
		case errors.Is(err, repository.ErrQuotaReached):
			return nil, s.usage.translate(ctx, err, fromID, plan, model.FeatureInterestSent, now)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("send interest: %w", err)
	}

	if res.Match != nil {
		s.announceMatch(ctx, res.Match, sender)
		return &SendResult{Interest: res.Interest, Match: res.Match}, nil
	}

	s.usage.recordConsumed(model.FeatureInterestSent)
	s.notifier.Notify(ctx, toID, model.NotifyNewInterest,
		"New interest", sender.FullName+" is interested in you",
		map[string]string{"interestId": res.Interest.ID, "fromUserId": fromID})
	s.events.Publish(ctx, toID, model.Event{Type: model.EventInterest, Data: res.Interest})
	return &SendResult{Interest: res.Interest}, nil
}

// Respond lets the recipient accept or reject a pending interest.
func (s *InterestService) Respond(ctx context.Context, userID, interestID string, status model.InterestStatus) (*SendResult, error) {
	if err := validateID("id", interestID); err != nil {
		return nil, err
	}
	if status != model.InterestAccepted && status != model.InterestRejected {
		return nil, invalid("status", "must be accepted or rejected")
	}

	interest, match, err := s.store.RespondInterest(ctx, interestID, userID, status, s.now().UTC())
	if err != nil {
		return nil, mapInterestError(err)
	}

	if status == model.InterestAccepted {
		recipient, _ := s.store.GetProfile(ctx, userID)
		name := "Someone"
		if recipient != nil {
			name = recipient.FullName
		}
		s.notifier.Notify(ctx, interest.FromUserID, model.NotifyInterestAccepted,
			"Interest accepted", name+" accepted your interest",
			map[string]string{"interestId": interest.ID, "userId": userID})
		s.events.Publish(ctx, interest.FromUserID, model.Event{Type: model.EventInterest, Data: interest})
		if match != nil {
			s.announceMatch(ctx, match, recipient)
		}
	}
	return &SendResult{Interest: interest, Match: match}, nil
}

// Withdraw lets the sender cancel a pending interest.
func (s *InterestService) Withdraw(ctx context.Context, userID, interestID string) (*model.Interest, error) {
	if err := validateID("id", interestID); err != nil {
		return nil, err
	}
	interest, err := s.store.WithdrawInterest(ctx, interestID, userID, s.now().UTC())
	if err != nil {
		return nil, mapInterestError(err)
	}
	return interest, nil
}

// ListSent lists interests the user sent with the recipients' cards.
func (s *InterestService) ListSent(ctx context.Context, userID string, limit int) ([]model.InterestWithProfile, error) {
	interests, err := s.store.ListSentInterests(ctx, userID, clampLimit(limit, defaultInterestLimit, maxInterestLimit))
	if err != nil {
		return nil, err
	}
	return s.withProfiles(ctx, interests, func(in *model.Interest) string { return in.ToUserID })
}

// ListReceived lists interests the user received, optionally filtered by status.
func (s *InterestService) ListReceived(ctx context.Context, userID string, status model.InterestStatus, limit int) ([]model.InterestWithProfile, error) {
	if status != "" && !status.IsValid() {
		return nil, invalid("status", "is not a valid interest status")
	}
	interests, err := s.store.ListReceivedInterests(ctx, userID, status, clampLimit(limit, defaultInterestLimit, maxInterestLimit))
	if err != nil {
		return nil, err
	}
	return s.withProfiles(ctx, interests, func(in *model.Interest) string { return in.FromUserID })
}

// ListMatches lists active matches with the other participant's card.
func (s *InterestService) ListMatches(ctx context.Context, userID string) ([]model.MatchWithProfile, error) {
	matches, err := s.store.ListMatches(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Other(userID)
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]model.MatchWithProfile, len(matches))
	for i, m := range matches {
		out[i] = model.MatchWithProfile{Match: *m}
		if p, ok := profiles[m.Other(userID)]; ok {
			summary := p.Summary(now)
			out[i].Profile = &summary
		}
	}
	return out, nil
}

// Unmatch ends a match the caller participates in.
func (s *InterestService) Unmatch(ctx context.Context, userID, matchID string) (*model.Match, error) {
	if err := validateID("id", matchID); err != nil {
		return nil, err
	}
	match, err := s.store.Unmatch(ctx, matchID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	s.events.Publish(ctx, match.Other(userID), model.Event{Type: model.EventMatch, Data: match})
	s.logger.Info("match ended", "match_id", match.ID, "by", userID)
	return match, nil
}

// checkTarget hides targets that are missing, banned, incomplete, blocked or
// hidden from the sender's plan.
func (s *InterestService) checkTarget(ctx context.Context, fromID, toID string, plan model.Plan) error {
	if _, err := loadActiveUser(ctx, s.users, toID); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAccountBanned) {
			return ErrProfileNotFound
		}
		return err
	}
	target, err := s.store.GetProfile(ctx, toID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	if !target.IsComplete() || (target.HideFromFreeUsers && !plan.IsPaid()) {
		return ErrProfileNotFound
	}
	blocked, err := s.store.IsBlockedEither(ctx, fromID, toID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrProfileNotFound
	}
	return nil
}

// announceMatch notifies both participants. actor is the profile of the user
// whose action completed the match and may be nil.
func (s *InterestService) announceMatch(ctx context.Context, m *model.Match, actor *model.Profile) {
	for _, userID := range []string{m.User1ID, m.User2ID} {
		body := "You have a new match"
		if actor != nil && actor.UserID != userID {
			body = "You matched with " + actor.FullName
		}
		s.notifier.Notify(ctx, userID, model.NotifyNewMatch, "It's a match!", body,
			map[string]string{"matchId": m.ID, "conversationId": m.ConversationID})
		s.events.Publish(ctx, userID, model.Event{Type: model.EventMatch, Data: m})
	}
	s.logger.Info("match created", "match_id", m.ID)
}

func (s *InterestService) withProfiles(ctx context.Context, interests []*model.Interest, other func(*model.Interest) string) ([]model.InterestWithProfile, error) {
	ids := make([]string, len(interests))
	for i, in := range interests {
		ids[i] = other(in)
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]model.InterestWithProfile, len(interests))
	for i, in := range interests {
		out[i] = model.InterestWithProfile{Interest: *in}
		if p, ok := profiles[other(in)]; ok {
			summary := p.Summary(now)
			out[i].Profile = &summary
		}
	}
	return out, nil
}

func mapInterestError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInterestNotFound):
		return ErrInterestNotFound
	case errors.Is(err, repository.ErrNotInterestParty):
		return ErrNotParticipant
	case errors.Is(err, repository.ErrInterestNotPending):
		return ErrInterestNotPending
	}
	return err
}
