package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aroosi/aroosi-api/internal/model"
)

// ConversationRow is a match with its inbox metadata.
type ConversationRow struct {
	Match       *model.Match
	LastMessage *model.Message
	UnreadCount int
}

// SendMessage consumes message quota and stores the message atomically.
// The match must still be active when the transaction commits.
func (r *Repository) SendMessage(ctx context.Context, msg *model.Message, quota UsageQuota) (int, error) {
	var used int
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM matches WHERE conversation_id = $1 AND status = 'active' FOR SHARE)`,
			msg.ConversationID).Scan(&active)
		if err != nil {
			return fmt.Errorf("failed to check match: %w", err)
		}
		if !active {
			return ErrMatchNotFound
		}

		used, err = consumeUsage(ctx, tx, msg.FromUserID, quota)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, from_user_id, to_user_id, text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, msg.ConversationID, msg.FromUserID, msg.ToUserID, msg.Text, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	return used, err
}

// ListMessages returns up to limit messages older than the cursor, newest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID, before string, limit int) ([]*model.Message, string, error) {
	cursorData, err := decodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	query := `
		SELECT id, conversation_id, from_user_id, to_user_id, text, read_at, created_at
		FROM messages WHERE conversation_id = $1`
	args := []any{conversationID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating messages: %w", err)
	}

	var nextCursor string
	if len(messages) > limit {
		messages = messages[:limit]
		last := messages[len(messages)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}
	return messages, nextCursor, nil
}

// MarkConversationRead marks messages sent to readerID as read.
func (r *Repository) MarkConversationRead(ctx context.Context, conversationID, readerID string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET read_at = $3
		WHERE conversation_id = $1 AND to_user_id = $2 AND read_at IS NULL`,
		conversationID, readerID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListConversations returns active matches with last message and unread count.
func (r *Repository) ListConversations(ctx context.Context, userID string) ([]*ConversationRow, error) {
	query := `
		SELECT m.id, m.user1_id, m.user2_id, m.conversation_id, m.status, m.created_at,
		       lm.id, lm.from_user_id, lm.to_user_id, lm.text, lm.read_at, lm.created_at,
		       COALESCE(uc.unread, 0)
		FROM matches m
		LEFT JOIN LATERAL (
			SELECT id, from_user_id, to_user_id, text, read_at, created_at
			FROM messages WHERE conversation_id = m.conversation_id
			ORDER BY created_at DESC, id DESC LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread FROM messages
			WHERE conversation_id = m.conversation_id AND to_user_id = $1 AND read_at IS NULL
		) uc ON TRUE
		WHERE m.status = 'active' AND (m.user1_id = $1 OR m.user2_id = $1)
		ORDER BY COALESCE(lm.created_at, m.created_at) DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var result []*ConversationRow
	for rows.Next() {
		var m model.Match
		var (
			msgID, msgFrom, msgTo, msgText *string
			msgReadAt, msgCreatedAt        *time.Time
			unread                         int
		)
		if err := rows.Scan(
			&m.ID, &m.User1ID, &m.User2ID, &m.ConversationID, &m.Status, &m.CreatedAt,
			&msgID, &msgFrom, &msgTo, &msgText, &msgReadAt, &msgCreatedAt,
			&unread,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		row := &ConversationRow{Match: &m, UnreadCount: unread}
		if msgID != nil {
			row.LastMessage = &model.Message{
				ID:             *msgID,
				ConversationID: m.ConversationID,
				FromUserID:     *msgFrom,
				ToUserID:       *msgTo,
				Text:           *msgText,
				ReadAt:         msgReadAt,
				CreatedAt:      *msgCreatedAt,
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return result, nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.FromUserID, &m.ToUserID, &m.Text, &m.ReadAt, &m.CreatedAt)
	return &m, err
}
