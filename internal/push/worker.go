package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

const (
	// DefaultBatchSize is the number of notifications claimed per poll.
	DefaultBatchSize = 50
	// DefaultPollInterval is the time between polls for due notifications.
	DefaultPollInterval = 2 * time.Second
	// DefaultMetricsInterval is how often to update queue depth metrics.
	DefaultMetricsInterval = 10 * time.Second
)

// Store is the persistence the worker needs.
type Store interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error)
	ListActiveDevices(ctx context.Context, userID string) ([]*model.DeviceToken, error)
	MarkDelivered(ctx context.Context, id string, attempt int, now time.Time) error
	MarkFailed(ctx context.Context, id string, attempt int, errMsg string, nextAttempt time.Time, exhausted bool) error
	DisableDevice(ctx context.Context, token string) error
	QueueDepth(ctx context.Context) (int64, error)
}

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Worker delivers pending notifications to registered devices.
type Worker struct {
	store           Store
	sender          Sender
	logger          *slog.Logger
	metrics         metrics.Recorder
	batchSize       int
	pollInterval    time.Duration
	metricsInterval time.Duration
	lastMetrics     time.Time
	started         bool
	now             func() time.Time
}

// NewWorker creates a push worker. With a nil sender every notification is
// treated as in-app only.
func NewWorker(store Store, sender Sender, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:           store,
		sender:          sender,
		logger:          logger.With("component", "push.worker"),
		metrics:         recorder,
		batchSize:       DefaultBatchSize,
		pollInterval:    DefaultPollInterval,
		metricsInterval: DefaultMetricsInterval,
		now:             time.Now,
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("push worker started", "batch_size", w.batchSize, "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("push worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
			}
		}
	}
}

// processOnce claims and delivers one batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	due, err := w.store.ClaimDue(ctx, w.now().UTC(), w.batchSize)
	if err != nil {
		return fmt.Errorf("claim due notifications: %w", err)
	}

	for _, n := range due {
		if err := w.deliver(ctx, n); err != nil {
			w.logger.Warn("delivery bookkeeping failed", "notification_id", n.ID, "error", err)
		}
	}
	return nil
}

// deliver pushes n to each active device of its user.
func (w *Worker) deliver(ctx context.Context, n *model.Notification) error {
	attempt := n.AttemptCount + 1

	var devices []*model.DeviceToken
	if w.sender != nil {
		var err error
		devices, err = w.store.ListActiveDevices(ctx, n.UserID)
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
	}

	if len(devices) == 0 {
		w.metrics.IncPushDelivery("in_app")
		return w.store.MarkDelivered(ctx, n.ID, n.AttemptCount, w.now().UTC())
	}

	var (
		delivered int
		lastErr   error
	)
	for _, d := range devices {
		err := w.sender.Send(ctx, Message{
			To:       d.Token,
			Platform: string(d.Platform),
			Title:    n.Title,
			Body:     n.Body,
			Data:     n.Data,
		})
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrDeviceGone):
			w.logger.Info("disabling device token", "user_id", n.UserID, "platform", d.Platform)
			if derr := w.store.DisableDevice(ctx, d.Token); derr != nil {
				w.logger.Warn("failed to disable device", "error", derr)
			}
		default:
			lastErr = err
		}
	}

	if delivered > 0 || lastErr == nil {
		w.logger.Info("notification delivered",
			"notification_id", n.ID,
			"type", n.Type,
			"devices", delivered,
			"attempt", attempt,
		)
		w.metrics.IncPushDelivery("delivered")
		return w.store.MarkDelivered(ctx, n.ID, attempt, w.now().UTC())
	}

	return w.handleDeliveryError(ctx, n, attempt, lastErr)
}

// handleDeliveryError schedules a retry or gives up.
func (w *Worker) handleDeliveryError(ctx context.Context, n *model.Notification, attempt int, cause error) error {
	exhausted := IsExhausted(attempt, model.MaxNotificationAttempts)

	status := "retry"
	if exhausted {
		status = "exhausted"
	}

	w.logger.Warn("push delivery failed",
		"notification_id", n.ID,
		"attempt", attempt,
		"exhausted", exhausted,
		"error", cause,
	)
	w.metrics.IncPushDelivery(status)

	next := NextRetryAt(w.now().UTC(), attempt-1)
	return w.store.MarkFailed(ctx, n.ID, attempt, cause.Error(), next, exhausted)
}

// maybeUpdateQueueDepth periodically updates the queue depth metric.
func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.now().Sub(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = w.now()

	depth, err := w.store.QueueDepth(ctx)
	if err != nil {
		w.logger.Warn("failed to get queue depth", "error", err)
		return
	}
	w.metrics.SetPushQueueDepth(depth)
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetPollInterval overrides the default poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}
