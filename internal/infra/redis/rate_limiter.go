package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter: INCR, with EXPIRE set on the first
// hit of each window.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit for key and reports whether it is within limit. When
// the limit is exceeded, retryAfter is the remaining window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error) {
	key = "rate_limit:" + key
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		rl.client.Expire(ctx, key, window)
	}
	if count > int64(limit) {
		ttl, _ := rl.client.TTL(ctx, key).Result()
		return false, ttl, nil
	}
	return true, 0, nil
}
