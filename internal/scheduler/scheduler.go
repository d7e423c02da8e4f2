// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aroosi/aroosi-api/internal/metrics"
)

// Retention windows.
const (
	UsageEventRetention   = 400 * 24 * time.Hour
	UsageCounterMonths    = 13
	NotificationRetention = 90 * 24 * time.Hour
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Job names.
const (
	JobClearBoosts        = "clear_expired_boosts"
	JobPruneRefreshTokens = "prune_refresh_tokens"
	JobPruneUsage         = "prune_usage"
	JobPruneNotifications = "prune_notifications"
)

// ErrUnknownJob is returned by RunJob for unregistered names.
var ErrUnknownJob = errors.New("unknown job")

// Store holds the maintenance queries.
type Store interface {
	ClearExpiredBoosts(ctx context.Context, now time.Time) (int64, error)
	PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
	PruneUsage(ctx context.Context, eventCutoff, counterCutoff time.Time) (int64, error)
}

// NotificationPruner deletes old delivered notifications.
type NotificationPruner interface {
	PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job is a named cron entry. Run returns the number of affected rows.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler wraps a UTC cron with logging and metrics.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time
	base    context.Context
	stop    context.CancelFunc
}

// New registers the maintenance jobs. notifications may be nil.
func New(store Store, notifications NotificationPruner, logger *slog.Logger, recorder metrics.Recorder) *Scheduler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	adapter := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		metrics: recorder,
		timeout: DefaultJobTimeout,
		now:     time.Now,
	}

	s.jobs = []Job{
		{
			Name: JobClearBoosts,
			Spec: "*/15 * * * *",
			Run:  store.ClearExpiredBoosts,
		},
		{
			Name: JobPruneRefreshTokens,
			Spec: "0 * * * *",
			Run:  store.PruneRefreshTokens,
		},
		{
			Name: JobPruneUsage,
			Spec: "0 3 * * *",
			Run: func(ctx context.Context, now time.Time) (int64, error) {
				return store.PruneUsage(ctx, now.Add(-UsageEventRetention), now.AddDate(0, -UsageCounterMonths, 0))
			},
		},
	}
	if notifications != nil {
		s.jobs = append(s.jobs, Job{
			Name: JobPruneNotifications,
			Spec: "30 3 * * *",
			Run: func(ctx context.Context, now time.Time) (int64, error) {
				return notifications.PruneNotifications(ctx, now.Add(-NotificationRetention))
			},
		})
	}
	return s
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

// Start schedules every job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.base, s.stop = context.WithCancel(context.WithoutCancel(ctx))

	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(s.base, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Shutdown stops scheduling and waits for running jobs.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := s.cron.Stop()
	if s.stop != nil {
		defer s.stop()
	}
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		if s.stop != nil {
			s.stop()
		}
		return ctx.Err()
	}
}

// RunJob runs a registered job immediately.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	affected, err := job.Run(ctx, s.now().UTC())
	duration := time.Since(start)

	s.metrics.ObserveSchedulerJob(job.Name, err == nil, duration)
	if err != nil {
		s.logger.Error("job failed", "job", job.Name, "duration_ms", duration.Milliseconds(), "error", err)
		return err
	}
	s.logger.Info("job finished", "job", job.Name, "affected", affected, "duration_ms", duration.Milliseconds())
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
