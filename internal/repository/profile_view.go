package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aroosi/aroosi-api/internal/model"
)

// BulkInsertProfileViews inserts views with idempotency via ON CONFLICT DO NOTHING.
// Views referencing unknown users are dropped.
// eventIDs[i] is the stream id of views[i].
func (r *Repository) BulkInsertProfileViews(ctx context.Context, views []*model.ProfileView, eventIDs []string) error {
	if len(views) == 0 {
		return nil
	}
	if len(views) != len(eventIDs) {
		return fmt.Errorf("views and event ids length mismatch: %d != %d", len(views), len(eventIDs))
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO profile_views (id, event_id, viewer_id, viewed_id, viewed_at, created_at)
		SELECT $1, $2, $3, $4, $5, NOW()
		WHERE EXISTS (SELECT 1 FROM users WHERE id = $3)
		  AND EXISTS (SELECT 1 FROM users WHERE id = $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	for i, v := range views {
		batch.Queue(query, v.ID, eventIDs[i], v.ViewerID, v.ViewedID, v.ViewedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(views); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert view %d: %w", i, err)
		}
	}
	return nil
}

// ListProfileViewers returns the latest view per viewer of a profile, newest first.
// Viewers that are banned, deleted or blocked in either direction are hidden.
func (r *Repository) ListProfileViewers(ctx context.Context, viewedID string, limit int) ([]*model.ProfileView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT v.viewer_id, MAX(v.viewed_at) AS last_viewed
		FROM profile_views v
		JOIN users u ON u.id = v.viewer_id
		WHERE v.viewed_id = $1
		  AND u.deleted_at IS NULL AND NOT u.banned
		  AND NOT EXISTS (
			SELECT 1 FROM blocks b
			WHERE (b.blocker_id = $1 AND b.blocked_id = v.viewer_id)
			   OR (b.blocker_id = v.viewer_id AND b.blocked_id = $1)
		  )
		GROUP BY v.viewer_id
		ORDER BY last_viewed DESC
		LIMIT $2`, viewedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewers: %w", err)
	}
	defer rows.Close()

	var views []*model.ProfileView
	for rows.Next() {
		v := model.ProfileView{ViewedID: viewedID}
		if err := rows.Scan(&v.ViewerID, &v.ViewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan viewer: %w", err)
		}
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viewers: %w", err)
	}
	return views, nil
}
