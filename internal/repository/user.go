package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already exists")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

const userColumns = `id, email, password_hash, role, plan, plan_expires_at, banned, COALESCE(banned_reason, ''), created_at, updated_at, deleted_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, plan, plan_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Plan,
		user.PlanExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a non-deleted user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a non-deleted user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// SetUserBan bans or unbans a user. Banning revokes all refresh tokens.
func (r *Repository) SetUserBan(ctx context.Context, id string, banned bool, reason string) (*model.User, error) {
	var user *model.User
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE users
			SET banned = $2, banned_reason = $3, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING ` + userColumns

		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, id, banned, nullableString(reason)))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to update ban: %w", err)
		}

		if banned {
			if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, id); err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
		}
		return nil
	})
	return user, err
}

// SetUserPlan changes the subscription plan.
func (r *Repository) SetUserPlan(ctx context.Context, id string, plan model.Plan, expiresAt *time.Time) (*model.User, error) {
	query := `
		UPDATE users
		SET plan = $2, plan_expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, plan, expiresAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	return user, nil
}

// SetUserRole changes the account role.
func (r *Repository) SetUserRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return user, nil
}

// DeleteAccount soft-deletes the user, removes the profile, ends matches and
// revokes sessions in one transaction. Returns the ids of ended matches' peers.
func (r *Repository) DeleteAccount(ctx context.Context, id string) ([]string, error) {
	var peers []string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		rows, err := tx.Query(ctx, `
			UPDATE matches SET status = 'unmatched', updated_at = NOW()
			WHERE status = 'active' AND (user1_id = $1 OR user2_id = $1)
			RETURNING CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
		`, id)
		if err != nil {
			return fmt.Errorf("failed to end matches: %w", err)
		}
		peers, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to collect match peers: %w", err)
		}

		statements := []string{
			`DELETE FROM profiles WHERE user_id = $1`,
			`DELETE FROM shortlists WHERE user_id = $1 OR shortlisted_user_id = $1`,
			`UPDATE interests SET status = 'withdrawn', updated_at = NOW() WHERE status = 'pending' AND (from_user_id = $1 OR to_user_id = $1)`,
			`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
			`UPDATE device_tokens SET disabled = TRUE WHERE user_id = $1`,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to clean up account: %w", err)
			}
		}
		return nil
	})
	return peers, err
}

// CreateRefreshToken stores a new refresh token hash.
func (r *Repository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query, token.ID, token.UserID, token.TokenHash, token.Prefix, token.ExpiresAt, token.CreatedAt); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokensByPrefix returns candidate tokens for a prefix.
func (r *Repository) GetRefreshTokensByPrefix(ctx context.Context, prefix string) ([]*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, prefix, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE prefix = $1
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		var t model.RefreshToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Prefix, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh tokens: %w", err)
	}

	return tokens, nil
}

// RotateRefreshToken revokes oldID and stores next atomically.
// Returns ErrRefreshTokenNotFound if oldID was already revoked.
func (r *Repository) RotateRefreshToken(ctx context.Context, oldID string, next *model.RefreshToken) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, oldID)
		if err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRefreshTokenNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, prefix, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, next.ID, next.UserID, next.TokenHash, next.Prefix, next.ExpiresAt, next.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to store rotated token: %w", err)
		}
		return nil
	})
}

// RevokeRefreshToken marks a token revoked. Revoking twice is a no-op.
func (r *Repository) RevokeRefreshToken(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// PruneRefreshTokens deletes tokens that expired or were revoked before cutoff.
func (r *Repository) PruneRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Plan,
		&u.PlanExpiresAt,
		&u.Banned,
		&u.BannedReason,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	return &u, err
}
