package service

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryNegativeLookupCacheGetSetInvalidate(t *testing.T) {
	cache := NewInMemoryNegativeLookupCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "fp-miss", time.Minute); err != nil {
		t.Fatalf("set negative cache: %v", err)
	}
	ok, err := cache.Get(ctx, "fp-miss")
	if err != nil {
		t.Fatalf("get negative cache: %v", err)
	}
	if !ok {
		t.Fatal("expected negative cache hit")
	}

	if err := cache.Invalidate(ctx, "fp-miss"); err != nil {
		t.Fatalf("invalidate negative cache: %v", err)
	}
	ok, err = cache.Get(ctx, "fp-miss")
	if err != nil {
		t.Fatalf("get cache after invalidate: %v", err)
	}
	if ok {
		t.Fatal("expected negative cache miss after invalidate")
	}
}

func TestInMemoryNegativeLookupCacheExpiry(t *testing.T) {
	cache := NewInMemoryNegativeLookupCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "fp-short", 25*time.Millisecond); err != nil {
		t.Fatalf("set negative cache: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	ok, err := cache.Get(ctx, "fp-short")
	if err != nil {
		t.Fatalf("get negative cache: %v", err)
	}
	if ok {
		t.Fatal("expected negative cache entry to expire")
	}
}

func TestInMemoryNegativeLookupCacheIgnoresNonPositiveTTL(t *testing.T) {
	cache := NewInMemoryNegativeLookupCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "fp-zero", 0); err != nil {
		t.Fatalf("set negative cache: %v", err)
	}
	ok, err := cache.Get(ctx, "fp-zero")
	if err != nil {
		t.Fatalf("get negative cache: %v", err)
	}
	if ok {
		t.Fatal("zero ttl must not create an entry")
	}
}

func TestNoopNegativeLookupCacheAlwaysMisses(t *testing.T) {
	cache := NewNoopNegativeLookupCache()
	ctx := context.Background()
	if err := cache.Set(ctx, "fp-noop", time.Minute); err != nil {
		t.Fatalf("set noop negative cache: %v", err)
	}
	ok, err := cache.Get(ctx, "fp-noop")
	if err != nil {
		t.Fatalf("get noop negative cache: %v", err)
	}
	if ok {
		t.Fatal("expected noop negative cache miss")
	}
	if err := cache.Invalidate(ctx, "fp-noop"); err != nil {
		t.Fatalf("invalidate noop negative cache: %v", err)
	}
}
