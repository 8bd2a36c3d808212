package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindowLimiter shares a counting window across replicas.
// Pair with FailOpen so a redis outage degrades to unlimited rather
// than refusing every kiosk in the fleet.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	window := time.Now().Unix() / int64(policy.Window.Seconds())
	bucket := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	resetAt := time.Unix((window+1)*int64(policy.Window.Seconds()), 0)
	if count > policy.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: time.Until(resetAt),
			ResetAt:    resetAt,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: policy.Limit - count,
		ResetAt:   resetAt,
	}, nil
}
