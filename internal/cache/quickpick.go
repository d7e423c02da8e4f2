package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	quickPickKeyPrefix = "quickpicks:"
	// quickPickSentinel keeps an emptied list distinguishable from a miss.
	quickPickSentinel = "-"
)

func quickPickKey(userID, day string) string {
	return quickPickKeyPrefix + userID + ":" + day
}

// GetQuickPicks returns the cached pick ids for a user and day.
// Returns ErrCacheMiss if the day was never generated.
func (c *Cache) GetQuickPicks(ctx context.Context, userID, day string) ([]string, error) {
	values, err := c.client.LRange(ctx, quickPickKey(userID, day), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrCacheMiss
	}

	ids := make([]string, 0, len(values)-1)
	for _, v := range values {
		if v != quickPickSentinel {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// SetQuickPicks replaces the picks for a day; the key expires at expireAt.
func (c *Cache) SetQuickPicks(ctx context.Context, userID, day string, ids []string, expireAt time.Time) error {
	key := quickPickKey(userID, day)

	values := make([]any, 0, len(ids)+1)
	values = append(values, quickPickSentinel)
	for _, id := range ids {
		values = append(values, id)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store quick picks: %w", err)
	}
	return nil
}

// RemoveQuickPick drops one pick from the cached list.
func (c *Cache) RemoveQuickPick(ctx context.Context, userID, day, targetID string) error {
	return c.client.LRem(ctx, quickPickKey(userID, day), 0, targetID).Err()
}
