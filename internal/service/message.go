package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// Message page bounds.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
	notificationPreview = 100
)

// MessageService handles conversations between matched users.
type MessageService struct {
	store    MessageStore
	usage    *UsageService
	notifier Notifier
	events   EventPublisher
	presence PresenceChecker
	logger   *slog.Logger
	now      func() time.Time
}

// NewMessageService creates a new MessageService. notifier, events and presence may be nil.
func NewMessageService(store MessageStore, usage *UsageService, notifier Notifier, events EventPublisher, presence PresenceChecker, logger *slog.Logger) *MessageService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if events == nil {
		events = noopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		store:    store,
		usage:    usage,
		notifier: notifier,
		events:   events,
		presence: presence,
		logger:   logger.With("component", "message"),
		now:      time.Now,
	}
}

// ListConversations returns the caller's inbox.
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Match.Other(userID)
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]model.Conversation, len(rows))
	for i, r := range rows {
		other := r.Match.Other(userID)
		out[i] = model.Conversation{
			ID:          r.Match.ConversationID,
			MatchID:     r.Match.ID,
			OtherUserID: other,
			LastMessage: r.LastMessage,
			UnreadCount: r.UnreadCount,
			CreatedAt:   r.Match.CreatedAt,
		}
		if p, ok := profiles[other]; ok {
			summary := p.Summary(now)
			out[i].Profile = &summary
		}
	}
	return out, nil
}

// MessagePage is one page of a conversation, newest first.
type MessagePage struct {
	Messages   []*model.Message
	NextCursor string
	HasMore    bool
}

// ListMessages returns messages older than before.
func (s *MessageService) ListMessages(ctx context.Context, userID, conversationID, before string, limit int) (*MessagePage, error) {
	if _, err := s.participantMatch(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, next, err := s.store.ListMessages(ctx, conversationID, before, clampLimit(limit, DefaultMessageLimit, MaxMessageLimit))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, invalid("before", "is invalid")
		}
		return nil, err
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	return &MessagePage{Messages: messages, NextCursor: next, HasMore: next != ""}, nil
}

// Send stores a message, consuming message_sent quota, and delivers it.
func (s *MessageService) Send(ctx context.Context, userID, conversationID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "is required")
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		return nil, invalid("text", fmt.Sprintf("must be at most %d characters", model.MaxMessageLength))
	}

	match, err := s.participantMatch(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	recipient := match.Other(userID)

	blocked, err := s.store.IsBlockedEither(ctx, userID, recipient)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrConversationClosed
	}

	plan, err := s.usage.PlanOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &model.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		FromUserID:     userID,
		ToUserID:       recipient,
		Text:           text,
		CreatedAt:      now,
	}
	if _, err := s.store.SendMessage(ctx, msg, s.usage.Quota(plan, model.FeatureMessageSent, now)); err != nil {
		switch {
		case errors.Is(err, repository.ErrMatchNotFound):
			return nil, ErrConversationClosed
		case errors.Is(err, repository.ErrQuotaReached):
			return nil, s.usage.translate(ctx, err, userID, plan, model.FeatureMessageSent, now)
		}
		return nil, fmt.Errorf("send message: %w", err)
	}
	s.usage.recordConsumed(model.FeatureMessageSent)

	event := model.Event{Type: model.EventMessage, Data: msg}
	s.events.Publish(ctx, recipient, event)
	s.events.Publish(ctx, userID, event)

	if !s.isOnline(ctx, recipient) {
		s.notifier.Notify(ctx, recipient, model.NotifyNewMessage, "New message", preview(text),
			map[string]string{"conversationId": conversationID, "messageId": msg.ID, "fromUserId": userID})
	}
	return msg, nil
}

// MarkRead marks incoming messages of the conversation as read and tells the sender.
func (s *MessageService) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	match, err := s.participantMatch(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkConversationRead(ctx, conversationID, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.Publish(ctx, match.Other(userID), model.Event{
			Type: model.EventRead,
			Data: model.ReadEvent{ConversationID: conversationID, ReaderID: userID, Count: n},
		})
	}
	return n, nil
}

// Typing relays a typing indicator to the other participant.
func (s *MessageService) Typing(ctx context.Context, userID, conversationID string) error {
	match, err := s.participantMatch(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	s.events.Publish(ctx, match.Other(userID), model.Event{
		Type: model.EventTyping,
		Data: model.TypingEvent{ConversationID: conversationID, UserID: userID},
	})
	return nil
}

// participantMatch returns the active match behind the conversation if the
// caller takes part in it.
func (s *MessageService) participantMatch(ctx context.Context, userID, conversationID string) (*model.Match, error) {
	if err := validateID("conversationId", conversationID); err != nil {
		return nil, err
	}
	match, err := s.store.GetActiveMatchByConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrMatchNotFound) {
			return nil, ErrConversationClosed
		}
		return nil, err
	}
	if !match.Involves(userID) {
		return nil, ErrConversationClosed
	}
	return match, nil
}

func (s *MessageService) isOnline(ctx context.Context, userID string) bool {
	if s.presence == nil {
		return false
	}
	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		s.logger.Warn("presence lookup failed", "user_id", userID, "error", err)
		return false
	}
	return online
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= notificationPreview {
		return text
	}
	runes := []rune(text)
	return string(runes[:notificationPreview]) + "…"
}
