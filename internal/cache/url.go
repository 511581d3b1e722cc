package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix = "short:"

	// DefaultURLTTL is the TTL for cached URL entries.
	DefaultURLTTL = 24 * time.Hour
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetURL retrieves the destination URL cached under a short key.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetURL(ctx context.Context, shortKey string) (string, error) {
	result, err := c.client.Get(ctx, urlKeyPrefix+shortKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return result, nil
}

// SetURL caches the destination URL for a short key. The TTL is capped
// at the mapping's remaining lifetime when an expiry is set; mappings
// that are already expired are evicted instead.
func (c *Cache) SetURL(ctx context.Context, shortKey, destination string, expiresAt *time.Time) error {
	key := urlKeyPrefix + shortKey

	ttl := c.urlTTL
	if expiresAt != nil {
		remaining := time.Until(*expiresAt)
		if remaining <= 0 {
			c.client.Del(ctx, key)
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	if err := c.client.Set(ctx, key, destination, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache url: %w", err)
	}
	return nil
}

// DeleteURL evicts the cached destination for a short key.
func (c *Cache) DeleteURL(ctx context.Context, shortKey string) error {
	if err := c.client.Del(ctx, urlKeyPrefix+shortKey).Err(); err != nil {
		return fmt.Errorf("failed to delete url from cache: %w", err)
	}
	return nil
}
