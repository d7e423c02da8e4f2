package cache

import (
	"context"
	"fmt"
	"time"
)

const presenceKeyPrefix = "presence:"

// PresenceTTL bounds how long a user stays online without a heartbeat.
const PresenceTTL = 90 * time.Second

// MarkOnline sets or refreshes the presence key of a user.
func (c *Cache) MarkOnline(ctx context.Context, userID string) error {
	if err := c.client.Set(ctx, presenceKeyPrefix+userID, time.Now().UTC().Format(time.RFC3339), PresenceTTL).Err(); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

// MarkOffline removes the presence key.
func (c *Cache) MarkOffline(ctx context.Context, userID string) error {
	return c.client.Del(ctx, presenceKeyPrefix+userID).Err()
}

// IsOnline reports whether the user has a live presence key on any instance.
func (c *Cache) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, presenceKeyPrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}
	return n > 0, nil
}
