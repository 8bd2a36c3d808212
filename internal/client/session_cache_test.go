package client

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleSession() *CachedSession {
	return &CachedSession{
		SessionID:   "sess-1",
		DeviceID:    "dev-1",
		Token:       "token-1",
		Interface:   "ORDER_ENTRY",
		LocationID:  "loc-1",
		Permissions: []string{"pos:access", "pos:order_entry"},
		ExpiresAt:   time.Now().Add(8 * time.Hour).UTC(),
	}
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("empty store should report no session, got %v", err)
	}

	want := sampleSession()
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SessionID != want.SessionID || got.Token != want.Token {
		t.Fatalf("unexpected session %+v", got)
	}

	// Loaded copy must not alias the stored one.
	got.Token = "mutated"
	reloaded, _ := store.Load()
	if reloaded.Token != "token-1" {
		t.Fatal("store must hand out copies")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatal("cleared store should report no session")
	}
}

func TestFileSessionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "session.json")
	store := NewFileSessionStore(path)

	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("missing file should report no session, got %v", err)
	}

	want := sampleSession()
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session cache should be owner-only, got %v", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SessionID != want.SessionID || len(got.Permissions) != 2 {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear should be a no-op: %v", err)
	}
}

func TestFileSessionStoreTreatsCorruptCacheAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewFileSessionStore(path)
	if _, err := store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatalf("corrupt cache should read as absent, got %v", err)
	}
}

func TestCachedSessionExpired(t *testing.T) {
	s := sampleSession()
	if s.Expired(time.Now()) {
		t.Fatal("fresh session should not be expired")
	}
	if !s.Expired(s.ExpiresAt.Add(time.Second)) {
		t.Fatal("session past expiry should report expired")
	}
}
