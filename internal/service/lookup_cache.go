package service

import (
	"context"
	"sync"
	"time"
)

// NegativeLookupCache remembers fingerprints that recently missed the
// registry, so kiosks retrying registration in a loop do not hammer
// the device table. A hit means "skip the lookup, go straight to
// registration"; correctness never depends on it because the insert
// path falls back to a lookup on fingerprint conflict.
type NegativeLookupCache interface {
	Get(ctx context.Context, fingerprint string) (bool, error)
	Set(ctx context.Context, fingerprint string, ttl time.Duration) error
	Invalidate(ctx context.Context, fingerprint string) error
}

type NoopNegativeLookupCache struct{}

func NewNoopNegativeLookupCache() *NoopNegativeLookupCache { return &NoopNegativeLookupCache{} }

func (c *NoopNegativeLookupCache) Get(context.Context, string) (bool, error) { return false, nil }

func (c *NoopNegativeLookupCache) Set(context.Context, string, time.Duration) error { return nil }

func (c *NoopNegativeLookupCache) Invalidate(context.Context, string) error { return nil }

type InMemoryNegativeLookupCache struct {
	mu    sync.RWMutex
	store map[string]time.Time
}

func NewInMemoryNegativeLookupCache() *InMemoryNegativeLookupCache {
	return &InMemoryNegativeLookupCache{store: make(map[string]time.Time)}
}

func (c *InMemoryNegativeLookupCache) Get(_ context.Context, fingerprint string) (bool, error) {
	now := time.Now().UTC()
	c.mu.RLock()
	expiresAt, ok := c.store[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(expiresAt) {
		c.mu.Lock()
		delete(c.store, fingerprint)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryNegativeLookupCache) Set(_ context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[fingerprint] = time.Now().UTC().Add(ttl)
	return nil
}

func (c *InMemoryNegativeLookupCache) Invalidate(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, fingerprint)
	return nil
}
