package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps the cached session in redis, keyed per
// terminal. Kiosk farms that netboot use this instead of the file
// store so a reimaged terminal resumes its session.
type RedisSessionStore struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, terminalID string) *RedisSessionStore {
	return &RedisSessionStore{
		client:  client,
		key:     "possession:" + terminalID,
		timeout: 3 * time.Second,
	}
}

func (s *RedisSessionStore) Load() (*CachedSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCachedSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session cache: %w", err)
	}
	var session CachedSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, ErrNoCachedSession
	}
	if session.SessionID == "" || session.Token == "" {
		return nil, ErrNoCachedSession
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(session *CachedSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}
	// The entry expires with the session; redis garbage-collects stale
	// terminals for us.
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session cache: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session cache: %w", err)
	}
	return nil
}
