package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// deniedTokenPrefix marks access token ids revoked by logout.
	deniedTokenPrefix = "auth:denied:"
	// userRevokedPrefix stores the instant before which a user's tokens are void.
	userRevokedPrefix = "auth:revoked:"
)

// DenyToken blocks an access token id until it would have expired anyway.
func (c *Cache) DenyToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, deniedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("deny token: %w", err)
	}
	return nil
}

// IsTokenDenied reports whether a token id was revoked.
func (c *Cache) IsTokenDenied(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, deniedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check denied token: %w", err)
	}
	return n > 0, nil
}

// RevokeUserTokens voids every access token of the user issued before at.
// The marker lives for ttl, which should be the access token lifetime.
func (c *Cache) RevokeUserTokens(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	err := c.client.Set(ctx, userRevokedPrefix+userID, strconv.FormatInt(at.Unix(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// UserTokensRevokedAt returns the revocation instant or the zero time.
func (c *Cache) UserTokensRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	v, err := c.client.Get(ctx, userRevokedPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get user revocation: %w", err)
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}
