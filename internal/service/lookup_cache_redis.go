package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisNegativeLookupCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisNegativeLookupCache(client redis.UniversalClient, prefix string) *RedisNegativeLookupCache {
	if prefix == "" {
		prefix = "device_miss"
	}
	return &RedisNegativeLookupCache{client: client, prefix: prefix}
}

func (c *RedisNegativeLookupCache) Get(ctx context.Context, fingerprint string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	_, err := c.client.Get(ctx, c.key(fingerprint)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisNegativeLookupCache) Set(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(fingerprint), "1", ttl).Err()
}

func (c *RedisNegativeLookupCache) Invalidate(ctx context.Context, fingerprint string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(fingerprint)).Err()
}

func (c *RedisNegativeLookupCache) key(fingerprint string) string {
	return c.prefix + ":" + fingerprint
}
