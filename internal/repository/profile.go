package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrAlreadyBoosted  = errors.New("profile already boosted")
)

// ProfileFilter defines search filters. Zero values are ignored.
type ProfileFilter struct {
	ViewerID      string
	ViewerIsFree  bool
	Gender        model.Gender
	AgeMin        int
	AgeMax        int
	City          string
	Country       string
	Religion      string
	MotherTongue  string
	MaritalStatus model.MaritalStatus
	Now           time.Time
}

// QuickPickFilter selects candidates for daily quick picks.
type QuickPickFilter struct {
	UserID          string
	Gender          model.Gender
	PreferredGender model.PreferredGender
	AgeMin          int
	AgeMax          int
	ViewerIsFree    bool
	Now             time.Time
	Limit           int
	// Seed orders the pool so that each user and day draws a different
	// window of candidates when more than Limit qualify.
	Seed string
}

const profileColumns = `p.user_id, p.full_name, p.gender, p.preferred_gender, p.date_of_birth, p.city, p.country,
	p.religion, p.mother_tongue, p.languages, p.education, p.occupation, p.height_cm, p.marital_status,
	p.about_me, p.phone_number, p.images, p.partner_age_min, p.partner_age_max, p.hide_from_free_users,
	p.boosted_until, p.created_at, p.updated_at`

// visibleProfile restricts to complete profiles of active users. $1 is the viewer.
const visibleProfile = `
	p.is_complete
	AND u.deleted_at IS NULL
	AND NOT u.banned
	AND p.user_id <> $1
	AND NOT EXISTS (
		SELECT 1 FROM blocks b
		WHERE (b.blocker_id = $1 AND b.blocked_id = p.user_id)
		   OR (b.blocker_id = p.user_id AND b.blocked_id = $1)
	)`

// CreateProfile inserts a profile for an existing user.
func (r *Repository) CreateProfile(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, full_name, gender, preferred_gender, date_of_birth, city, country, religion,
			mother_tongue, languages, education, occupation, height_cm, marital_status, about_me,
			phone_number, images, partner_age_min, partner_age_max, hide_from_free_users, is_complete,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.FullName, p.Gender, p.PreferredGender, p.DateOfBirth, p.City, p.Country, p.Religion,
		p.MotherTongue, pq.Array(p.Languages), p.Education, p.Occupation, p.HeightCm, p.MaritalStatus, p.AboutMe,
		p.PhoneNumber, pq.Array(p.Images), p.PartnerAgeMin, p.PartnerAgeMax, p.HideFromFreeUsers, p.IsComplete(),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by owner id regardless of visibility.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.user_id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetProfiles loads profiles for a set of users keyed by user id.
func (r *Repository) GetProfiles(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	result := make(map[string]*model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.user_id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		result[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return result, nil
}

// UpdateProfile replaces the mutable fields of a profile.
func (r *Repository) UpdateProfile(ctx context.Context, p *model.Profile) error {
	query := `
		UPDATE profiles SET
			full_name = $2, gender = $3, preferred_gender = $4, date_of_birth = $5, city = $6, country = $7,
			religion = $8, mother_tongue = $9, languages = $10, education = $11, occupation = $12,
			height_cm = $13, marital_status = $14, about_me = $15, phone_number = $16, images = $17,
			partner_age_min = $18, partner_age_max = $19, hide_from_free_users = $20, is_complete = $21,
			updated_at = $22
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		p.UserID, p.FullName, p.Gender, p.PreferredGender, p.DateOfBirth, p.City, p.Country,
		p.Religion, p.MotherTongue, pq.Array(p.Languages), p.Education, p.Occupation,
		p.HeightCm, p.MaritalStatus, p.AboutMe, p.PhoneNumber, pq.Array(p.Images),
		p.PartnerAgeMin, p.PartnerAgeMax, p.HideFromFreeUsers, p.IsComplete(),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// BoostProfile consumes boost quota and sets boosted_until atomically.
// Returns ErrAlreadyBoosted while a boost is active and ErrQuotaReached when
// the quota is exhausted.
func (r *Repository) BoostProfile(ctx context.Context, userID string, until time.Time, quota UsageQuota) (int, error) {
	var used int
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var boostedUntil *time.Time
		err := tx.QueryRow(ctx, `SELECT boosted_until FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&boostedUntil)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		if boostedUntil != nil && quota.Now.Before(*boostedUntil) {
			return ErrAlreadyBoosted
		}

		used, err = consumeUsage(ctx, tx, userID, quota)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE profiles SET boosted_until = $2, updated_at = NOW() WHERE user_id = $1`, userID, until); err != nil {
			return fmt.Errorf("failed to set boost: %w", err)
		}
		return nil
	})
	return used, err
}

// ClearExpiredBoosts nulls boosted_until for boosts that have ended.
func (r *Repository) ClearExpiredBoosts(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET boosted_until = NULL WHERE boosted_until IS NOT NULL AND boosted_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear boosts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SearchProfiles lists visible profiles, boosted first then newest.
func (r *Repository) SearchProfiles(ctx context.Context, filter ProfileFilter, cursor string, limit int) ([]*model.Profile, string, error) {
	cursorData, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	now := filter.Now
	boosted := `(p.boosted_until IS NOT NULL AND p.boosted_until > $2)`

	query := `
		SELECT ` + profileColumns + `, ` + boosted + ` AS is_boosted
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE ` + visibleProfile
	args := []any{filter.ViewerID, now}
	argIndex := 3

	if filter.ViewerIsFree {
		query += ` AND NOT p.hide_from_free_users`
	}
	if filter.Gender != "" {
		query += fmt.Sprintf(" AND p.gender = $%d", argIndex)
		args = append(args, filter.Gender)
		argIndex++
	}
	if filter.AgeMin > 0 {
		query += fmt.Sprintf(" AND p.date_of_birth <= $%d", argIndex)
		args = append(args, latestBirthDate(now, filter.AgeMin))
		argIndex++
	}
	if filter.AgeMax > 0 {
		query += fmt.Sprintf(" AND p.date_of_birth > $%d", argIndex)
		args = append(args, latestBirthDate(now, filter.AgeMax+1))
		argIndex++
	}
	for _, f := range []struct {
		column string
		value  string
	}{
		{"p.city", filter.City},
		{"p.country", filter.Country},
		{"p.religion", filter.Religion},
		{"p.mother_tongue", filter.MotherTongue},
		{"p.marital_status", string(filter.MaritalStatus)},
	} {
		if f.value == "" {
			continue
		}
		query += fmt.Sprintf(" AND lower(%s) = lower($%d)", f.column, argIndex)
		args = append(args, f.value)
		argIndex++
	}

	if cursorData != nil {
		keyset := fmt.Sprintf("(p.created_at, p.user_id) < ($%d, $%d)", argIndex, argIndex+1)
		if cursorData.Boosted {
			query += fmt.Sprintf(" AND ((%s AND %s) OR NOT %s)", boosted, keyset, boosted)
		} else {
			query += fmt.Sprintf(" AND NOT %s AND %s", boosted, keyset)
		}
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY is_boosted DESC, p.created_at DESC, p.user_id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to search profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	var boostedFlags []bool
	for rows.Next() {
		var isBoosted bool
		p, err := scanProfileWith(rows, &isBoosted)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
		boostedFlags = append(boostedFlags, isBoosted)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating profiles: %w", err)
	}

	var nextCursor string
	if len(profiles) > limit {
		profiles = profiles[:limit]
		last := profiles[len(profiles)-1]
		nextCursor = encodeCursor(&PaginationCursor{
			ID:        last.UserID,
			CreatedAt: last.CreatedAt,
			Boosted:   boostedFlags[limit-1],
		})
	}

	return profiles, nextCursor, nil
}

// ListQuickPickCandidates returns up to f.Limit eligible candidates in an
// order derived from f.Seed.
func (r *Repository) ListQuickPickCandidates(ctx context.Context, f QuickPickFilter) ([]*model.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE ` + visibleProfile + `
		  AND (p.preferred_gender = 'any' OR p.preferred_gender = $2)
		  AND NOT EXISTS (
			SELECT 1 FROM interests i
			WHERE i.status <> 'withdrawn'
			  AND ((i.from_user_id = $1 AND i.to_user_id = p.user_id)
			    OR (i.from_user_id = p.user_id AND i.to_user_id = $1))
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.status = 'active'
			  AND ((m.user1_id = $1 AND m.user2_id = p.user_id)
			    OR (m.user1_id = p.user_id AND m.user2_id = $1))
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM quick_pick_actions a WHERE a.user_id = $1 AND a.target_user_id = p.user_id
		  )`
	args := []any{f.UserID, f.Gender}
	argIndex := 3

	if f.PreferredGender != "" && f.PreferredGender != model.PreferAny {
		query += fmt.Sprintf(" AND p.gender = $%d", argIndex)
		args = append(args, string(f.PreferredGender))
		argIndex++
	}
	if f.ViewerIsFree {
		query += ` AND NOT p.hide_from_free_users`
	}
	if f.AgeMin > 0 {
		query += fmt.Sprintf(" AND p.date_of_birth <= $%d", argIndex)
		args = append(args, latestBirthDate(f.Now, f.AgeMin))
		argIndex++
	}
	if f.AgeMax > 0 {
		query += fmt.Sprintf(" AND p.date_of_birth > $%d", argIndex)
		args = append(args, latestBirthDate(f.Now, f.AgeMax+1))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY md5(p.user_id || $%d), p.user_id LIMIT $%d", argIndex, argIndex+1)
	args = append(args, f.Seed, f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quick pick candidates: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return profiles, nil
}

// VisibleProfileIDs returns the subset of ids the viewer may see: complete
// profiles of active users with no block in either direction. Profiles hidden
// from free users are dropped when viewerIsFree is set.
func (r *Repository) VisibleProfileIDs(ctx context.Context, viewerID string, ids []string, viewerIsFree bool) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT p.user_id
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ANY($2) AND ` + visibleProfile
	if viewerIsFree {
		query += ` AND NOT p.hide_from_free_users`
	}

	rows, err := r.pool.Query(ctx, query, viewerID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to filter visible profiles: %w", err)
	}
	visible, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan visible profiles: %w", err)
	}
	return visible, nil
}

// latestBirthDate returns the last date of birth that is at least age years old at now.
func latestBirthDate(now time.Time, age int) time.Time {
	now = now.UTC()
	return time.Date(now.Year()-age, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	return scanProfileWith(row)
}

func scanProfileWith(row pgx.Row, extra ...any) (*model.Profile, error) {
	var p model.Profile
	dest := []any{
		&p.UserID, &p.FullName, &p.Gender, &p.PreferredGender, &p.DateOfBirth, &p.City, &p.Country,
		&p.Religion, &p.MotherTongue, pq.Array(&p.Languages), &p.Education, &p.Occupation, &p.HeightCm,
		&p.MaritalStatus, &p.AboutMe, &p.PhoneNumber, pq.Array(&p.Images), &p.PartnerAgeMin,
		&p.PartnerAgeMax, &p.HideFromFreeUsers, &p.BoostedUntil, &p.CreatedAt, &p.UpdatedAt,
	}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	return &p, err
}
