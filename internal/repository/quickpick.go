package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
)

// RecordQuickPickAction stores a like or skip. Repeating an action overwrites it.
func (r *Repository) RecordQuickPickAction(ctx context.Context, a *model.QuickPickAction) error {
	day, err := time.Parse(time.DateOnly, a.Day)
	if err != nil {
		return fmt.Errorf("invalid quick pick day %q: %w", a.Day, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO quick_pick_actions (user_id, target_user_id, action, day, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, target_user_id)
		DO UPDATE SET action = EXCLUDED.action, day = EXCLUDED.day, created_at = EXCLUDED.created_at`,
		a.UserID, a.TargetUserID, a.Action, day, a.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to record quick pick action: %w", err)
	}
	return nil
}
