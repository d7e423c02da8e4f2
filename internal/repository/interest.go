package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/aroosi/aroosi-api/internal/model"
)

// Common errors for interest and match operations.
var (
	ErrInterestNotFound   = errors.New("interest not found")
	ErrInterestExists     = errors.New("interest already sent")
	ErrInterestNotPending = errors.New("interest is not pending")
	ErrNotInterestParty   = errors.New("caller is not allowed to change this interest")
	ErrMatchNotFound      = errors.New("match not found")
)

// SendInterestResult reports what a send did.
type SendInterestResult struct {
	Interest *model.Interest
	// Match is set when the send completed a mutual interest.
	Match *model.Match
	// QuotaUsed is the interest counter after consumption. Zero when no quota was consumed.
	QuotaUsed int
}

const interestColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

// SendInterest creates an interest from in.FromUserID to in.ToUserID.
// If the target already has a pending interest towards the sender, both become
// accepted and a match is created without consuming quota.
func (r *Repository) SendInterest(ctx context.Context, in *model.Interest, quota UsageQuota) (*SendInterestResult, error) {
	result := &SendInterestResult{}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := lockPair(ctx, tx, in.FromUserID, in.ToUserID); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM interests
				WHERE from_user_id = $1 AND to_user_id = $2 AND status IN ('pending', 'accepted')
			)`, in.FromUserID, in.ToUserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing interest: %w", err)
		}
		if exists {
			return ErrInterestExists
		}

		reverse, err := scanInterest(tx.QueryRow(ctx, `
			SELECT `+interestColumns+` FROM interests
			WHERE from_user_id = $1 AND to_user_id = $2 AND status = 'pending'
			FOR UPDATE`, in.ToUserID, in.FromUserID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to lock reverse interest: %w", err)
		}

		if err == nil {
			if _, err := tx.Exec(ctx, `UPDATE interests SET status = 'accepted', updated_at = $2 WHERE id = $1`, reverse.ID, in.CreatedAt); err != nil {
				return fmt.Errorf("failed to accept reverse interest: %w", err)
			}
			in.Status = model.InterestAccepted
			if err := insertInterest(ctx, tx, in); err != nil {
				return err
			}
			match, err := createMatch(ctx, tx, in.FromUserID, in.ToUserID, in.CreatedAt)
			if err != nil {
				return err
			}
			result.Match = match
			result.Interest = in
			return nil
		}

		used, err := consumeUsage(ctx, tx, in.FromUserID, quota)
		if err != nil {
			return err
		}
		in.Status = model.InterestPending
		if err := insertInterest(ctx, tx, in); err != nil {
			return err
		}
		result.Interest = in
		result.QuotaUsed = used
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RespondInterest lets the recipient accept or reject a pending interest.
func (r *Repository) RespondInterest(ctx context.Context, id, recipientID string, status model.InterestStatus, now time.Time) (*model.Interest, *model.Match, error) {
	var interest *model.Interest
	var match *model.Match
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		interest, err = lockInterest(ctx, tx, id)
		if err != nil {
			return err
		}
		if interest.ToUserID != recipientID {
			return ErrNotInterestParty
		}
		if interest.Status != model.InterestPending {
			return ErrInterestNotPending
		}

		if _, err := tx.Exec(ctx, `UPDATE interests SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now); err != nil {
			return fmt.Errorf("failed to update interest: %w", err)
		}
		interest.Status = status
		interest.UpdatedAt = now

		if status == model.InterestAccepted {
			match, err = createMatch(ctx, tx, interest.FromUserID, interest.ToUserID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return interest, match, nil
}

// WithdrawInterest lets the sender cancel a pending interest.
func (r *Repository) WithdrawInterest(ctx context.Context, id, senderID string, now time.Time) (*model.Interest, error) {
	var interest *model.Interest
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		interest, err = lockInterest(ctx, tx, id)
		if err != nil {
			return err
		}
		if interest.FromUserID != senderID {
			return ErrNotInterestParty
		}
		if interest.Status != model.InterestPending {
			return ErrInterestNotPending
		}
		if _, err := tx.Exec(ctx, `UPDATE interests SET status = 'withdrawn', updated_at = $2 WHERE id = $1`, id, now); err != nil {
			return fmt.Errorf("failed to withdraw interest: %w", err)
		}
		interest.Status = model.InterestWithdrawn
		interest.UpdatedAt = now
		return nil
	})
	return interest, err
}

// ListSentInterests lists interests sent by userID, newest first.
func (r *Repository) ListSentInterests(ctx context.Context, userID string, limit int) ([]*model.Interest, error) {
	return r.queryInterests(ctx, `
		SELECT `+interestColumns+` FROM interests
		WHERE from_user_id = $1 AND status <> 'withdrawn'
		ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
}

// ListReceivedInterests lists interests received by userID, optionally by status.
func (r *Repository) ListReceivedInterests(ctx context.Context, userID string, status model.InterestStatus, limit int) ([]*model.Interest, error) {
	if status == "" {
		return r.queryInterests(ctx, `
			SELECT `+interestColumns+` FROM interests
			WHERE to_user_id = $1 AND status <> 'withdrawn'
			ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	}
	return r.queryInterests(ctx, `
		SELECT `+interestColumns+` FROM interests
		WHERE to_user_id = $1 AND status = $3
		ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit, status)
}

// HasLiveInterestBetween reports any pending or accepted interest in either direction.
func (r *Repository) HasLiveInterestBetween(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM interests
			WHERE status IN ('pending', 'accepted')
			  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		)`, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check interests: %w", err)
	}
	return exists, nil
}

// ListMatches lists active matches of a user, newest first.
func (r *Repository) ListMatches(ctx context.Context, userID string) ([]*model.Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user1_id, user2_id, conversation_id, status, created_at
		FROM matches
		WHERE status = 'active' AND (user1_id = $1 OR user2_id = $1)
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// GetActiveMatchByConversation finds the live match behind a conversation id.
func (r *Repository) GetActiveMatchByConversation(ctx context.Context, conversationID string) (*model.Match, error) {
	m, err := scanMatch(r.pool.QueryRow(ctx, `
		SELECT id, user1_id, user2_id, conversation_id, status, created_at
		FROM matches WHERE conversation_id = $1 AND status = 'active'`, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// Unmatch ends an active match the caller participates in and retires the
// accepted interests so the pair can start over.
func (r *Repository) Unmatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	var match *model.Match
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		match, err = scanMatch(tx.QueryRow(ctx, `
			SELECT id, user1_id, user2_id, conversation_id, status, created_at
			FROM matches WHERE id = $1 FOR UPDATE`, matchID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMatchNotFound
			}
			return fmt.Errorf("failed to lock match: %w", err)
		}
		if !match.Involves(userID) || match.Status != model.MatchActive {
			return ErrMatchNotFound
		}
		return endMatch(ctx, tx, match)
	})
	if err != nil {
		return nil, err
	}
	match.Status = model.MatchUnmatched
	return match, nil
}

// lockPair serializes writes touching the same pair of users.
func lockPair(ctx context.Context, tx pgx.Tx, a, b string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "pair:"+model.ConversationID(a, b)); err != nil {
		return fmt.Errorf("failed to lock pair: %w", err)
	}
	return nil
}

func lockInterest(ctx context.Context, tx pgx.Tx, id string) (*model.Interest, error) {
	interest, err := scanInterest(tx.QueryRow(ctx, `SELECT `+interestColumns+` FROM interests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInterestNotFound
		}
		return nil, fmt.Errorf("failed to lock interest: %w", err)
	}
	return interest, nil
}

func insertInterest(ctx context.Context, tx pgx.Tx, in *model.Interest) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO interests (id, from_user_id, to_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.FromUserID, in.ToUserID, in.Status, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInterestExists
		}
		return fmt.Errorf("failed to insert interest: %w", err)
	}
	return nil
}

// createMatch inserts an active match for the pair or returns the existing one.
func createMatch(ctx context.Context, tx pgx.Tx, a, b string, now time.Time) (*model.Match, error) {
	lo, hi := model.OrderedPair(a, b)
	m := &model.Match{
		ID:             ulid.Make().String(),
		User1ID:        lo,
		User2ID:        hi,
		ConversationID: model.ConversationID(lo, hi),
		Status:         model.MatchActive,
		CreatedAt:      now,
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (id, user1_id, user2_id, conversation_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', $5, $5)
		ON CONFLICT (user1_id, user2_id) WHERE status = 'active' DO NOTHING`,
		m.ID, m.User1ID, m.User2ID, m.ConversationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return m, nil
	}

	existing, err := scanMatch(tx.QueryRow(ctx, `
		SELECT id, user1_id, user2_id, conversation_id, status, created_at
		FROM matches WHERE user1_id = $1 AND user2_id = $2 AND status = 'active'`, lo, hi))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing match: %w", err)
	}
	return existing, nil
}

// endMatch marks a match unmatched and withdraws the pair's accepted interests.
func endMatch(ctx context.Context, tx pgx.Tx, m *model.Match) error {
	if _, err := tx.Exec(ctx, `UPDATE matches SET status = 'unmatched', updated_at = NOW() WHERE id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to end match: %w", err)
	}
	_, err := tx.Exec(ctx, `
		UPDATE interests SET status = 'withdrawn', updated_at = NOW()
		WHERE status IN ('pending', 'accepted')
		  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))`,
		m.User1ID, m.User2ID)
	if err != nil {
		return fmt.Errorf("failed to retire interests: %w", err)
	}
	return nil
}

func (r *Repository) queryInterests(ctx context.Context, query string, args ...any) ([]*model.Interest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interests: %w", err)
	}
	defer rows.Close()

	var interests []*model.Interest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		interests = append(interests, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interests: %w", err)
	}
	return interests, nil
}

func scanInterest(row pgx.Row) (*model.Interest, error) {
	var in model.Interest
	err := row.Scan(&in.ID, &in.FromUserID, &in.ToUserID, &in.Status, &in.CreatedAt, &in.UpdatedAt)
	return &in, err
}

func scanMatch(row pgx.Row) (*model.Match, error) {
	var m model.Match
	err := row.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.ConversationID, &m.Status, &m.CreatedAt)
	return &m, err
}
