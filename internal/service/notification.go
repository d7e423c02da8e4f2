package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Notification list bounds.
const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
	MaxDeviceTokenLength     = 4096
	MaxMarkReadIDs           = 100
)

// NotificationService stores in-app notifications and device registrations.
// Delivery to devices is done by the push worker.
type NotificationService struct {
	store  NotificationStore
	logger *slog.Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:  store,
		logger: logger.With("component", "notification"),
		now:    time.Now,
	}
}

// RegisterDevice upserts a push token for the caller.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID, token string, platform model.DevicePlatform) (*model.DeviceToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalid("token", "is required")
	}
	if len(token) > MaxDeviceTokenLength {
		return nil, invalid("token", "is too long")
	}
	if !platform.IsValid() {
		return nil, invalid("platform", "must be one of ios, android, web")
	}

	now := s.now().UTC()
	device := &model.DeviceToken{
		Token:      token,
		UserID:     userID,
		Platform:   platform,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.store.UpsertDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return device, nil
}

// UnregisterDevice removes one of the caller's push tokens. Unknown tokens are ignored.
func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, token string) error {
	if token == "" {
		return invalid("token", "is required")
	}
	if err := s.store.DeleteDevice(ctx, userID, token); err != nil {
		return fmt.Errorf("unregister device: %w", err)
	}
	return nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, clampLimit(limit, DefaultNotificationLimit, MaxNotificationLimit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return items, nil
}

// MarkRead marks the given notifications read, or all of them when ids is empty.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) > MaxMarkReadIDs {
		return 0, invalid("ids", fmt.Sprintf("must have at most %d entries", MaxMarkReadIDs))
	}
	for _, id := range ids {
		if err := validateID("ids", id); err != nil {
			return 0, err
		}
	}
	return s.store.MarkNotificationsRead(ctx, userID, ids, s.now().UTC())
}

// Notify enqueues a notification for userID. Failures are logged, not returned.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind model.NotificationType, title, body string, data map[string]string) {
	now := s.now().UTC()
	n := &model.Notification{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Type:          kind,
		Title:         title,
		Body:          body,
		Data:          data,
		Status:        model.NotificationPending,
		NextAttemptAt: &now,
		CreatedAt:     now,
	}
	if err := s.store.CreateNotification(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Error("failed to enqueue notification", "user_id", userID, "type", kind, "error", err)
	}
}
