package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per key in fixed one-minute windows.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{client: client, limit: int64(perMinute), window: time.Minute}
}

// Allow reports whether another request for key fits in the current window.
// Errors are returned to the caller, which decides whether to fail open.
func (r *RateLimiter) Allow(ctx context.Context, scope, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit increment: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= r.limit, nil
}
