package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Common errors for safety operations.
var (
	ErrBlockNotFound  = errors.New("block not found")
	ErrReportNotFound = errors.New("report not found")
	ErrReportExists   = errors.New("a pending report already exists")
)

// ReportFilter defines filters for the moderation queue.
type ReportFilter struct {
	Status model.ReportStatus
}

// BlockUser records a block and ends any active match between the pair.
// Returns the ended match, if any.
func (r *Repository) BlockUser(ctx context.Context, block *model.Block) (*model.Match, error) {
	var ended *model.Match
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, block.BlockerID, block.BlockedID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO blocks (blocker_id, blocked_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (blocker_id, blocked_id) DO NOTHING`,
			block.BlockerID, block.BlockedID, block.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to insert block: %w", err)
		}

		lo, hi := model.OrderedPair(block.BlockerID, block.BlockedID)
		m, err := scanMatch(tx.QueryRow(ctx, `
			SELECT id, user1_id, user2_id, conversation_id, status, created_at
			FROM matches WHERE user1_id = $1 AND user2_id = $2 AND status = 'active'
			FOR UPDATE`, lo, hi))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to lock match: %w", err)
		}
		if err == nil {
			if err := endMatch(ctx, tx, m); err != nil {
				return err
			}
			m.Status = model.MatchUnmatched
			ended = m
			return nil
		}

		// No match, but pending interests still need retiring.
		_, err = tx.Exec(ctx, `
			UPDATE interests SET status = 'withdrawn', updated_at = NOW()
			WHERE status = 'pending'
			  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))`,
			block.BlockerID, block.BlockedID)
		if err != nil {
			return fmt.Errorf("failed to withdraw interests: %w", err)
		}
		return nil
	})
	return ended, err
}

// UnblockUser removes a block.
func (r *Repository) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// ListBlocks returns users blocked by blockerID, newest first.
func (r *Repository) ListBlocks(ctx context.Context, blockerID string) ([]*model.Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT blocker_id, blocked_id, created_at FROM blocks
		WHERE blocker_id = $1 ORDER BY created_at DESC`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*model.Block
	for rows.Next() {
		var b model.Block
		if err := rows.Scan(&b.BlockerID, &b.BlockedID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}
	return blocks, nil
}

// IsBlockedEither reports whether either user blocked the other.
func (r *Repository) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	var blocked bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1)
		)`, a, b).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return blocked, nil
}

// CreateReport inserts a report. A second pending report for the same pair fails.
func (r *Repository) CreateReport(ctx context.Context, report *model.Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (id, reporter_id, reported_id, reason, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, report.ReporterID, report.ReportedID, report.Reason, report.Description,
		report.Status, report.CreatedAt, report.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReportExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// ListReports pages through reports, newest first.
func (r *Repository) ListReports(ctx context.Context, filter ReportFilter, cursor string, limit int) ([]*model.Report, string, error) {
	cursorData, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, reporter_id, reported_id, reason, description, status, created_at, updated_at
		FROM reports WHERE TRUE`
	args := []any{}
	argIndex := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
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
		return nil, "", fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating reports: %w", err)
	}

	var nextCursor string
	if len(reports) > limit {
		reports = reports[:limit]
		last := reports[len(reports)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}
	return reports, nextCursor, nil
}

// UpdateReportStatus moves a report through moderation.
func (r *Repository) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) (*model.Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx, `
		UPDATE reports SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, reporter_id, reported_id, reason, description, status, created_at, updated_at`,
		id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrReportExists
		}
		return nil, fmt.Errorf("failed to update report: %w", err)
	}
	return rep, nil
}

func scanReport(row pgx.Row) (*model.Report, error) {
	var rep model.Report
	err := row.Scan(&rep.ID, &rep.ReporterID, &rep.ReportedID, &rep.Reason, &rep.Description, &rep.Status, &rep.CreatedAt, &rep.UpdatedAt)
	return &rep, err
}
