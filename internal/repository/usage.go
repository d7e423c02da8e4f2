package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
)

// ErrQuotaReached is returned when a conditional usage increment is refused.
var ErrQuotaReached = errors.New("usage quota reached")

// UsageQuota describes the counter a metered write must increment.
type UsageQuota struct {
	Feature     model.Feature
	Limit       int // model.Unlimited for no cap
	PeriodStart time.Time
	Now         time.Time
}

// consumeUsage increments the counter iff below the limit and records a usage event.
// A single conditional upsert keeps concurrent consumers from overshooting the limit.
func consumeUsage(ctx context.Context, q querier, userID string, quota UsageQuota) (int, error) {
	if quota.Limit == 0 {
		return 0, ErrQuotaReached
	}

	limit := quota.Limit
	if limit < 0 {
		limit = math.MaxInt32
	}

	query := `
		INSERT INTO usage_counters (user_id, feature, period_start, count, updated_at)
		VALUES ($1, $2, $3, 1, $5)
		ON CONFLICT (user_id, feature, period_start)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = $5
		WHERE usage_counters.count < $4
		RETURNING count
	`

	var count int
	err := q.QueryRow(ctx, query, userID, quota.Feature, quota.PeriodStart, limit, quota.Now).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaReached
		}
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}

	_, err = q.Exec(ctx, `INSERT INTO usage_events (id, user_id, feature, created_at) VALUES ($1, $2, $3, $4)`,
		ulid.Make().String(), userID, quota.Feature, quota.Now)
	if err != nil {
		return 0, fmt.Errorf("failed to record usage event: %w", err)
	}

	return count, nil
}

// ConsumeUsage increments a usage counter outside any other write.
func (r *Repository) ConsumeUsage(ctx context.Context, userID string, quota UsageQuota) (int, error) {
	var used int
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		used, err = consumeUsage(ctx, tx, userID, quota)
		return err
	})
	return used, err
}

// GetUsageCount returns the counter for a feature and period, 0 if absent.
func (r *Repository) GetUsageCount(ctx context.Context, userID string, feature model.Feature, periodStart time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM usage_counters WHERE user_id = $1 AND feature = $2 AND period_start = $3`,
		userID, feature, periodStart,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage count: %w", err)
	}
	return count, nil
}

// GetUsageHistory returns per-day counts per feature since the given day (inclusive, UTC).
func (r *Repository) GetUsageHistory(ctx context.Context, userID string, since time.Time) (map[string]map[model.Feature]int, error) {
	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, feature, COUNT(*)
		FROM usage_events
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY day, feature
	`

	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}
	defer rows.Close()

	history := make(map[string]map[model.Feature]int)
	for rows.Next() {
		var day string
		var feature model.Feature
		var count int
		if err := rows.Scan(&day, &feature, &count); err != nil {
			return nil, fmt.Errorf("failed to scan usage history: %w", err)
		}
		if history[day] == nil {
			history[day] = make(map[model.Feature]int)
		}
		history[day][feature] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage history: %w", err)
	}
	return history, nil
}

// PruneUsage deletes events older than eventCutoff and counters whose period
// started before counterCutoff.
func (r *Repository) PruneUsage(ctx context.Context, eventCutoff, counterCutoff time.Time) (int64, error) {
	var total int64
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM usage_events WHERE created_at < $1`, eventCutoff)
		if err != nil {
			return fmt.Errorf("failed to prune usage events: %w", err)
		}
		total += tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM usage_counters WHERE period_start < $1`, counterCutoff)
		if err != nil {
			return fmt.Errorf("failed to prune usage counters: %w", err)
		}
		total += tag.RowsAffected()
		return nil
	})
	return total, err
}
