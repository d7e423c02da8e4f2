// Package push stores notifications and delivers them to device tokens through an HTTP gateway.
package push

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/aroosi/aroosi-api/internal/model"
)

// ClaimLease is how long a claimed notification stays invisible to other workers.
const ClaimLease = 2 * time.Minute

// Repository handles device and notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new push repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertDevice registers a token, moving it to device.UserID if another user held it.
func (r *Repository) UpsertDevice(ctx context.Context, device *model.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (token, user_id, platform, disabled, created_at, last_seen_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    platform = EXCLUDED.platform,
		    disabled = FALSE,
		    last_seen_at = EXCLUDED.last_seen_at
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		device.Token, device.UserID, device.Platform, device.CreatedAt, device.LastSeenAt,
	).Scan(&device.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// DeleteDevice removes a user's token. Missing tokens are not an error.
func (r *Repository) DeleteDevice(ctx context.Context, userID, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// ListActiveDevices returns the user's enabled tokens.
func (r *Repository) ListActiveDevices(ctx context.Context, userID string) ([]*model.DeviceToken, error) {
	query := `
		SELECT token, user_id, platform, disabled, created_at, last_seen_at
		FROM device_tokens
		WHERE user_id = $1 AND NOT disabled
		ORDER BY last_seen_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*model.DeviceToken
	for rows.Next() {
		var d model.DeviceToken
		if err := rows.Scan(&d.Token, &d.UserID, &d.Platform, &d.Disabled, &d.CreatedAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

// DisableDevice stops deliveries to a token the gateway rejected.
func (r *Repository) DisableDevice(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE device_tokens SET disabled = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("disable device: %w", err)
	}
	return nil
}

// CreateNotification inserts a pending notification.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	keys, values := splitData(n.Data)
	query := `
		INSERT INTO notifications (
			id, user_id, type, title, body, data_keys, data_values,
			status, attempt_count, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Body, pq.Array(keys), pq.Array(values),
		n.Status, n.AttemptCount, n.NextAttemptAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

const notificationColumns = `
	id, user_id, type, title, body, data_keys, data_values, status,
	attempt_count, next_attempt_at, COALESCE(last_error, ''), read_at, delivered_at, created_at
`

// ListNotifications returns a user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collectNotifications(rows)
}

// MarkNotificationsRead sets read_at on the given ids, or on all unread rows when ids is empty.
func (r *Repository) MarkNotificationsRead(ctx context.Context, userID string, ids []string, now time.Time) (int64, error) {
	query := `
		UPDATE notifications SET read_at = $2
		WHERE user_id = $1 AND read_at IS NULL
		  AND (cardinality($3::text[]) = 0 OR id = ANY($3::text[]))
	`
	if ids == nil {
		ids = []string{}
	}
	tag, err := r.pool.Exec(ctx, query, userID, now, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimDue locks up to limit due notifications and leases them for ClaimLease.
// Concurrent workers skip rows already locked.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	var claimed []*model.Notification
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + notificationColumns + `
			FROM notifications
			WHERE status IN ('pending', 'failed') AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`
		rows, err := tx.Query(ctx, query, now, limit)
		if err != nil {
			return fmt.Errorf("select due notifications: %w", err)
		}
		claimed, err = collectNotifications(rows)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]string, len(claimed))
		for i, n := range claimed {
			ids[i] = n.ID
		}
		_, err = tx.Exec(ctx,
			`UPDATE notifications SET next_attempt_at = $2 WHERE id = ANY($1::text[])`,
			pq.Array(ids), now.Add(ClaimLease),
		)
		if err != nil {
			return fmt.Errorf("lease notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkDelivered records a successful push.
func (r *Repository) MarkDelivered(ctx context.Context, id string, attempt int, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'delivered', attempt_count = $2, delivered_at = $3,
		    next_attempt_at = NULL, last_error = NULL
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, attempt, now); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. Exhausted rows are never retried.
func (r *Repository) MarkFailed(ctx context.Context, id string, attempt int, errMsg string, nextAttempt time.Time, exhausted bool) error {
	status := model.NotificationFailed
	next := &nextAttempt
	if exhausted {
		status = model.NotificationExhausted
		next = nil
	}
	query := `
		UPDATE notifications
		SET status = $2, attempt_count = $3, last_error = $4, next_attempt_at = $5
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, status, attempt, errMsg, next); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// QueueDepth counts notifications still awaiting delivery.
func (r *Repository) QueueDepth(ctx context.Context) (int64, error) {
	var depth int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status IN ('pending', 'failed')`,
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

// PruneNotifications deletes delivered notifications created before cutoff.
func (r *Repository) PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE status = 'delivered' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]*model.Notification, error) {
	defer rows.Close()

	var items []*model.Notification
	for rows.Next() {
		var (
			n      model.Notification
			keys   []string
			values []string
		)
		err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body,
			pq.Array(&keys), pq.Array(&values), &n.Status,
			&n.AttemptCount, &n.NextAttemptAt, &n.LastError,
			&n.ReadAt, &n.DeliveredAt, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Data = joinData(keys, values)
		items = append(items, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// splitData flattens data into parallel key/value arrays sorted by key.
func splitData(data map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = data[k]
	}
	return keys, values
}

func joinData(keys, values []string) map[string]string {
	if len(keys) == 0 {
		return nil
	}
	data := make(map[string]string, len(keys))
	for i, k := range keys {
		if i < len(values) {
			data[k] = values[i]
		}
	}
	return data
}
