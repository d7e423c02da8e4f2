package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Common errors for shortlist operations.
var (
	ErrShortlistExists   = errors.New("user already shortlisted")
	ErrShortlistNotFound = errors.New("shortlist entry not found")
	ErrShortlistFull     = errors.New("shortlist is full")
)

// AddShortlist inserts an entry unless the owner already holds capacity entries.
// capacity < 0 means unlimited.
func (r *Repository) AddShortlist(ctx context.Context, entry *model.ShortlistEntry, capacity int) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "shortlist:"+entry.UserID); err != nil {
			return fmt.Errorf("failed to lock shortlist: %w", err)
		}

		if capacity >= 0 {
			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM shortlists WHERE user_id = $1`, entry.UserID).Scan(&count); err != nil {
				return fmt.Errorf("failed to count shortlist: %w", err)
			}
			if count >= capacity {
				return ErrShortlistFull
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO shortlists (user_id, shortlisted_user_id, note, created_at)
			VALUES ($1, $2, $3, $4)`,
			entry.UserID, entry.ShortlistedUserID, entry.Note, entry.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrShortlistExists
			}
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to add shortlist entry: %w", err)
		}
		return nil
	})
}

// RemoveShortlist deletes an entry.
func (r *Repository) RemoveShortlist(ctx context.Context, userID, shortlistedUserID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shortlists WHERE user_id = $1 AND shortlisted_user_id = $2`, userID, shortlistedUserID)
	if err != nil {
		return fmt.Errorf("failed to remove shortlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShortlistNotFound
	}
	return nil
}

// ListShortlist returns a user's entries, newest first.
func (r *Repository) ListShortlist(ctx context.Context, userID string) ([]*model.ShortlistEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, shortlisted_user_id, note, created_at
		FROM shortlists WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortlist: %w", err)
	}
	defer rows.Close()

	var entries []*model.ShortlistEntry
	for rows.Next() {
		var e model.ShortlistEntry
		if err := rows.Scan(&e.UserID, &e.ShortlistedUserID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shortlist entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shortlist: %w", err)
	}
	return entries, nil
}
