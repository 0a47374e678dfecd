package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// identityCachePrefix is the Redis key prefix for resolved auth tokens.
	identityCachePrefix = "identity:gsid:"
	// identityCacheTTL bounds how long a revoked provider token keeps resolving.
	identityCacheTTL = 5 * time.Minute

	// serviceTokenCachePrefix marks service tokens that already passed argon2 verification.
	serviceTokenCachePrefix = "servicetoken:ok:"
	serviceTokenCacheTTL    = 5 * time.Minute
)

// GetIdentity returns the gsid cached for a token hash.
// The bool is false on a miss; Redis errors are reported as misses.
func (c *Cache) GetIdentity(ctx context.Context, tokenHash string) (string, bool) {
	gsid, err := c.client.Get(ctx, identityCachePrefix+tokenHash).Result()
	if err != nil {
		return "", false
	}
	return gsid, gsid != ""
}

// SetIdentity caches the gsid a token hash resolved to.
func (c *Cache) SetIdentity(ctx context.Context, tokenHash, gsid string) error {
	if err := c.client.Set(ctx, identityCachePrefix+tokenHash, gsid, identityCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache identity: %w", err)
	}
	return nil
}

// IsServiceTokenVerified reports whether a token hash was recently verified.
func (c *Cache) IsServiceTokenVerified(ctx context.Context, tokenHash string) bool {
	err := c.client.Get(ctx, serviceTokenCachePrefix+tokenHash).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false
	}
	return err == nil
}

// MarkServiceTokenVerified records a successful verification.
func (c *Cache) MarkServiceTokenVerified(ctx context.Context, tokenHash string) error {
	return c.client.Set(ctx, serviceTokenCachePrefix+tokenHash, "1", serviceTokenCacheTTL).Err()
}
