// Package analytics moves profile views through a Redis stream into Postgres.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

const (
	// StreamKey is the Redis stream for profile views.
	StreamKey = "stream:profile_views"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:profile_views:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// ProfileViewPayload is the compact stream encoding of a view.
type ProfileViewPayload struct {
	ID       string `json:"id"`
	ViewerID string `json:"v"`
	ViewedID string `json:"p"`
	ViewedAt int64  `json:"t"` // Unix milliseconds
}

// NewProfileViewPayload encodes view for the stream.
func NewProfileViewPayload(view *model.ProfileView) ProfileViewPayload {
	return ProfileViewPayload{
		ID:       view.ID,
		ViewerID: view.ViewerID,
		ViewedID: view.ViewedID,
		ViewedAt: view.ViewedAt.UnixMilli(),
	}
}

// View decodes the payload.
func (p ProfileViewPayload) View() *model.ProfileView {
	return &model.ProfileView{
		ID:       p.ID,
		ViewerID: p.ViewerID,
		ViewedID: p.ViewedID,
		ViewedAt: time.UnixMilli(p.ViewedAt).UTC(),
	}
}

// Publisher enqueues profile views to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new analytics event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a view to the stream synchronously and returns the stream id.
func (p *Publisher) Publish(ctx context.Context, payload ProfileViewPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishProfileView publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishProfileView(ctx context.Context, view *model.ProfileView) {
	payload := NewProfileViewPayload(view)
	base := context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(base, PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, payload)
		if err != nil {
			p.logger.Warn("failed to publish profile view",
				"viewer_id", payload.ViewerID,
				"error", err,
			)
			p.metrics.IncAnalyticsEventPublished("dropped")
			return
		}

		p.logger.Debug("profile view published", "stream_id", streamID)
		p.metrics.IncAnalyticsEventPublished("success")
	}()
}
