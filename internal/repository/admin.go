package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
)

// AdminUserFilter defines filters for the admin profile list.
type AdminUserFilter struct {
	Query  string
	Banned *bool
}

// GetAdminStats aggregates dashboard counters. dayStart bounds "today".
func (r *Repository) GetAdminStats(ctx context.Context, dayStart time.Time) (*model.AdminStats, error) {
	stats := &model.AdminStats{UsersByPlan: make(map[model.Plan]int64)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT banned),
			COUNT(*) FILTER (WHERE banned),
			COUNT(*) FILTER (WHERE created_at >= $1)
		FROM users WHERE deleted_at IS NULL`, dayStart,
	).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.BannedUsers, &stats.NewUsersToday)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT CASE WHEN plan <> 'free' AND plan_expires_at IS NOT NULL AND plan_expires_at <= NOW() THEN 'free' ELSE plan END AS effective, COUNT(*)
		FROM users WHERE deleted_at IS NULL
		GROUP BY effective`)
	if err != nil {
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var plan model.Plan
		var n int64
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, fmt.Errorf("failed to scan plan count: %w", err)
		}
		stats.UsersByPlan[plan] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan counts: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM profiles WHERE is_complete),
			(SELECT COUNT(*) FROM matches WHERE status = 'active'),
			(SELECT COUNT(*) FROM messages WHERE created_at >= $1),
			(SELECT COUNT(*) FROM reports WHERE status = 'pending')`, dayStart,
	).Scan(&stats.CompleteProfiles, &stats.ActiveMatches, &stats.MessagesToday, &stats.PendingReports)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	return stats, nil
}

// ListUsersAdmin pages through users with their profiles, newest first.
func (r *Repository) ListUsersAdmin(ctx context.Context, filter AdminUserFilter, cursor string, limit int) ([]*model.AdminProfile, string, error) {
	cursorData, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT ` + userColumns + ` FROM users u WHERE deleted_at IS NULL`
	args := []any{}
	argIndex := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND (email ILIKE $%d OR EXISTS (
			SELECT 1 FROM profiles p WHERE p.user_id = u.id AND p.full_name ILIKE $%d))`, argIndex, argIndex)
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		argIndex++
	}
	if filter.Banned != nil {
		query += fmt.Sprintf(" AND banned = $%d", argIndex)
		args = append(args, *filter.Banned)
		argIndex++
	}
	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating users: %w", err)
	}

	var nextCursor string
	if len(users) > limit {
		users = users[:limit]
		last := users[len(users)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	profiles, err := r.GetProfiles(ctx, ids)
	if err != nil {
		return nil, "", err
	}

	result := make([]*model.AdminProfile, len(users))
	for i, u := range users {
		result[i] = &model.AdminProfile{User: *u, Profile: profiles[u.ID]}
	}
	return result, nextCursor, nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
