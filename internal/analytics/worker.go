package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

// ConsumerGroup is the Redis consumer group shared by all API replicas.
const ConsumerGroup = "profile_view_workers"

const deadLetterMaxLen = 10000

// Repository persists profile views. eventIDs[i] is the stream id of views[i].
type Repository interface {
	BulkInsertProfileViews(ctx context.Context, views []*model.ProfileView, eventIDs []string) error
}

// WorkerConfig tunes the stream consumer. Zero fields take the defaults.
type WorkerConfig struct {
	ConsumerID string
	BatchSize  int
	// BlockTimeout bounds each XREADGROUP call.
	BlockTimeout time.Duration
	// Attempts is how often a batch insert is tried before the messages are
	// left pending for a later reclaim.
	Attempts  int
	RetryBase time.Duration
	// Entries idle longer than ClaimIdle in another consumer's pending list
	// are taken over every ClaimEvery.
	ClaimEvery time.Duration
	ClaimIdle  time.Duration
	// Reclaimed entries delivered more than MaxDeliveries times are
	// dead-lettered instead of retried.
	MaxDeliveries int
	DepthEvery    time.Duration
}

// DefaultWorkerConfig returns the production settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ConsumerID:    NewConsumerID(),
		BatchSize:     200,
		BlockTimeout:  5 * time.Second,
		Attempts:      3,
		RetryBase:     500 * time.Millisecond,
		ClaimEvery:    10 * time.Second,
		ClaimIdle:     30 * time.Second,
		MaxDeliveries: 5,
		DepthEvery:    5 * time.Second,
	}
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	d := DefaultWorkerConfig()
	if c.ConsumerID == "" {
		c.ConsumerID = d.ConsumerID
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = d.BlockTimeout
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.ClaimEvery <= 0 {
		c.ClaimEvery = d.ClaimEvery
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = d.ClaimIdle
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = d.MaxDeliveries
	}
	if c.DepthEvery <= 0 {
		c.DepthEvery = d.DepthEvery
	}
	return c
}

// NewConsumerID names this process inside the consumer group. Every start gets
// a fresh name; entries left pending by a dead replica are reclaimed.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "api"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), ulid.Make())
}

// Worker drains profile views from the Redis stream into Postgres.
type Worker struct {
	redis   *redis.Client
	repo    Repository
	cfg     WorkerConfig
	logger  *slog.Logger
	metrics metrics.Recorder

	// touched only by the Run goroutine
	claimCursor string
	nextClaim   time.Time
	nextDepth   time.Time

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a worker; a nil logger or recorder falls back to the defaults.
func NewWorker(client *redis.Client, repo Repository, cfg WorkerConfig, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		redis:       client,
		repo:        repo,
		cfg:         cfg,
		logger:      logger.With("component", "analytics.worker", "consumer_id", cfg.ConsumerID),
		metrics:     recorder,
		claimCursor: "0-0",
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("analytics worker already running")
	}
	w.running = true
	ctx, w.stop = context.WithCancel(ctx)
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()
	defer close(done)

	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return fmt.Errorf("create consumer group: %w", err)
	}
	w.logger.Info("analytics worker started", "stream", StreamKey, "group", ConsumerGroup)

	for ctx.Err() == nil {
		if err := w.step(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("analytics batch failed", "error", err)
			sleepCtx(ctx, time.Second)
		}
	}
	w.logger.Info("analytics worker stopped")
	return nil
}

// Shutdown stops Run after the in-flight batch and waits for it, bounded by ctx.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.mu.Unlock()
	if stop == nil {
		return nil
	}

	stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("analytics worker shutdown timed out")
		return ctx.Err()
	}
}

// step handles one batch: reclaimed entries first, otherwise new ones.
func (w *Worker) step(ctx context.Context) error {
	now := time.Now()
	if now.After(w.nextDepth) {
		w.nextDepth = now.Add(w.cfg.DepthEvery)
		w.reportDepth(ctx)
	}

	var batch []redis.XMessage
	var deliveries map[string]int64
	if now.After(w.nextClaim) {
		w.nextClaim = now.Add(w.cfg.ClaimEvery)
		claimed, counts, err := w.reclaim(ctx)
		if err != nil {
			w.logger.Warn("reclaim pending views failed", "error", err)
		}
		batch, deliveries = claimed, counts
	}
	if len(batch) == 0 {
		read, err := w.read(ctx)
		if err != nil {
			return err
		}
		batch = read
	}
	if len(batch) == 0 {
		return nil
	}

	ids := make([]string, 0, len(batch))
	views := make([]*model.ProfileView, 0, len(batch))
	eventIDs := make([]string, 0, len(batch))
	for _, msg := range batch {
		ids = append(ids, msg.ID)
		if n := deliveries[msg.ID]; n > int64(w.cfg.MaxDeliveries) {
			w.deadLetter(ctx, msg, "max_deliveries", fmt.Errorf("delivered %d times", n))
			continue
		}
		view, reason, err := decodeMessage(msg)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err)
			continue
		}
		views = append(views, view)
		eventIDs = append(eventIDs, msg.ID)
	}

	if len(views) > 0 {
		if err := w.persist(ctx, views, eventIDs); err != nil {
			// left pending; a later reclaim retries them
			return err
		}
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("ack %d views: %w", len(ids), err)
	}
	return nil
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	res, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// reclaim takes over idle pending entries and returns them with their
// delivery counts.
func (w *Worker) reclaim(ctx context.Context) ([]redis.XMessage, map[string]int64, error) {
	msgs, cursor, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	if cursor != "" {
		w.claimCursor = cursor
	}
	if len(msgs) == 0 {
		return nil, nil, nil
	}
	w.logger.Info("reclaimed pending views", "count", len(msgs))

	pending, err := w.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Start:    msgs[0].ID,
		End:      msgs[len(msgs)-1].ID,
		Count:    int64(2 * w.cfg.BatchSize),
	}).Result()
	if err != nil {
		// without counts the batch is retried as usual
		return msgs, nil, fmt.Errorf("read delivery counts: %w", err)
	}
	return msgs, deliveryCounts(pending), nil
}

func deliveryCounts(pending []redis.XPendingExt) map[string]int64 {
	counts := make(map[string]int64, len(pending))
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return counts
}

func (w *Worker) reportDepth(ctx context.Context) {
	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.logger.Warn("read consumer group info failed", "error", err)
		}
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetAnalyticsQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

// persist inserts the batch, retrying with doubling backoff. Duplicate stream
// ids are ignored by the repository so a retried batch is safe.
func (w *Worker) persist(ctx context.Context, views []*model.ProfileView, eventIDs []string) error {
	start := time.Now()
	backoff := w.cfg.RetryBase

	var err error
	for attempt := 1; ; attempt++ {
		if err = w.repo.BulkInsertProfileViews(ctx, views, eventIDs); err == nil {
			break
		}
		if attempt >= w.cfg.Attempts {
			for range views {
				w.metrics.IncAnalyticsEventProcessed("failed")
			}
			return fmt.Errorf("insert %d views after %d attempts: %w", len(views), attempt, err)
		}
		w.logger.Warn("insert views failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
	}

	elapsed := time.Since(start)
	w.metrics.ObserveAnalyticsBatchSize(len(views))
	w.metrics.ObserveAnalyticsBatchDuration(elapsed)
	for _, v := range views {
		w.metrics.IncAnalyticsEventProcessed("success")
		w.metrics.ObserveAnalyticsIngestLag(time.Since(v.ViewedAt))
	}
	w.logger.Debug("views persisted", "count", len(views), "elapsed", elapsed)
	return nil
}

// decodeMessage returns the view carried by msg, or the dead-letter reason.
func decodeMessage(msg redis.XMessage) (*model.ProfileView, string, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, "invalid_format", errors.New("payload field missing or not a string")
	}

	var payload ProfileViewPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, "unmarshal_error", err
	}
	if err := ValidateProfileViewPayload(payload); err != nil {
		return nil, "validation_error", err
	}
	return payload.View(), "", nil
}

// deadLetter copies an undecodable entry to the DLQ stream. The original is
// acked with the rest of the batch.
func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.logger.Warn("dead-lettering profile view", "message_id", msg.ID, "reason", reason, "error", cause)
	w.metrics.IncAnalyticsEventProcessed("dead_lettered")

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("write dead-letter entry failed", "message_id", msg.ID, "error", err)
	}
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
