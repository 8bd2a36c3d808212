package client

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreForTest(t *testing.T) (*miniredis.Miniredis, *RedisSessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisSessionStore(client, "terminal-7")
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	_, store := newRedisStoreForTest(t)

	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("expected ErrNoCachedSession on empty store, got %v", err)
	}

	saved := &CachedSession{
		SessionID: "sess-1",
		DeviceID:  "dev-1",
		Token:     "tok-1",
		Interface: "ORDER_ENTRY",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.SessionID != saved.SessionID || loaded.Token != saved.Token {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("expected ErrNoCachedSession after clear, got %v", err)
	}
}

func TestRedisSessionStoreExpiresWithSession(t *testing.T) {
	mr, store := newRedisStoreForTest(t)

	saved := &CachedSession{
		SessionID: "sess-2",
		DeviceID:  "dev-2",
		Token:     "tok-2",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(11 * time.Minute)
	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("expected cache entry to expire with the session, got %v", err)
	}
}

func TestRedisSessionStoreRejectsIncompleteEntry(t *testing.T) {
	mr, store := newRedisStoreForTest(t)
	if err := mr.Set("possession:terminal-7", `{"session_id":"sess-3"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("entry without a token must read as absent, got %v", err)
	}
}
