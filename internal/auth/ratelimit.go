package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter limits requests per bucket key using Redis INCR + EXPIRE. The
// bucket identifier is caller-supplied: a customer id for the /mcp/* limiter,
// a client IP for the unauthenticated /sso/* limiter.
type RateLimiter struct {
	redis      *redis.Client
	prefix     string
	maxAttempt int
	window     time.Duration
}

// NewRateLimiter creates a rate limiter scoped by prefix. maxAttempt is the
// max requests allowed per bucket within the given window.
func NewRateLimiter(rdb *redis.Client, prefix string, maxAttempt int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:      rdb,
		prefix:     prefix,
		maxAttempt: maxAttempt,
		window:     window,
	}
}

// RateLimitResult holds the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Check returns whether the given bucket is allowed to proceed.
func (rl *RateLimiter) Check(ctx context.Context, bucket string) (*RateLimitResult, error) {
	key := fmt.Sprintf("%s:%s", rl.prefix, bucket)

	count, err := rl.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count >= rl.maxAttempt {
		ttl, err := rl.redis.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("getting TTL: %w", err)
		}
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			RetryAt:   time.Now().Add(ttl),
		}, nil
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: rl.maxAttempt - count,
	}, nil
}

// Record records one request against the given bucket.
func (rl *RateLimiter) Record(ctx context.Context, bucket string) error {
	key := fmt.Sprintf("%s:%s", rl.prefix, bucket)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording rate limit: %w", err)
	}

	// Only set the expiry on the first increment.
	if incr.Val() == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}

	return nil
}

// Reset clears the rate limit counter for a given bucket (on successful login).
func (rl *RateLimiter) Reset(ctx context.Context, bucket string) error {
	key := fmt.Sprintf("%s:%s", rl.prefix, bucket)
	return rl.redis.Del(ctx, key).Err()
}
