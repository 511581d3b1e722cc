package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// rateLimitPrefix is the Redis key prefix for per-client rate limit windows.
const rateLimitPrefix = "rate:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// CheckRateLimit counts a request against the caller's fixed window and
// reports whether it is allowed. The first request of a window creates the
// counter with the window TTL; the counter then expires with the window.
// The IP is hashed before use as a key. On Redis errors the result allows
// the request and the error is returned for the caller to log.
func (c *Cache) CheckRateLimit(ctx context.Context, ip string, maxRequests int, window time.Duration) (*RateLimitResult, error) {
	key := rateLimitPrefix + hashIP(ip)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return failOpen(maxRequests, window), fmt.Errorf("rate limit incr failed: %w", err)
	}

	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return failOpen(maxRequests, window), fmt.Errorf("rate limit expire failed: %w", err)
		}
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	result := &RateLimitResult{
		Allowed:   count <= int64(maxRequests),
		Limit:     int64(maxRequests),
		Remaining: int64(maxRequests) - count,
		ResetAt:   time.Now().Add(ttl),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}
	return result, nil
}

// failOpen builds the permissive result used when Redis is unreachable.
func failOpen(maxRequests int, window time.Duration) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Limit:     int64(maxRequests),
		Remaining: int64(maxRequests),
		ResetAt:   time.Now().Add(window),
	}
}

// hashIP creates a truncated SHA256 hash of an IP address.
// This provides privacy while maintaining uniqueness.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
