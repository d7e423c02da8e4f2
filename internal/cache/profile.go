package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aroosi/aroosi-api/internal/model"
)

const (
	profileKeyPrefix = "profile:"

	// DefaultProfileTTL is the TTL for cached profiles.
	DefaultProfileTTL = 10 * time.Minute
)

// GetProfile retrieves a cached profile.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	data, err := c.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupted entry - treat as miss
		return nil, ErrCacheMiss
	}
	return &p, nil
}

// SetProfile stores a profile in cache.
func (c *Cache) SetProfile(ctx context.Context, p *model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return c.client.Set(ctx, profileKeyPrefix+p.UserID, data, DefaultProfileTTL).Err()
}

// DeleteProfile invalidates a cached profile.
func (c *Cache) DeleteProfile(ctx context.Context, userID string) error {
	return c.client.Del(ctx, profileKeyPrefix+userID).Err()
}
