package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CachedSession is what a POS client persists between launches so a
// reboot does not force a full re-authentication.
type CachedSession struct {
	SessionID   string    `json:"session_id"`
	DeviceID    string    `json:"device_id"`
	Token       string    `json:"token"`
	Interface   string    `json:"interface"`
	LocationID  string    `json:"location_id"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired checks the client's local copy of the absolute expiry. The
// server remains authoritative; this only avoids a doomed round-trip.
func (c *CachedSession) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

var ErrNoCachedSession = errors.New("no cached session")

type SessionStore interface {
	Load() (*CachedSession, error)
	Save(session *CachedSession) error
	Clear() error
}

type MemorySessionStore struct {
	mu      sync.Mutex
	session *CachedSession
}

func NewMemorySessionStore() *MemorySessionStore { return &MemorySessionStore{} }

func (s *MemorySessionStore) Load() (*CachedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoCachedSession
	}
	copied := *s.session
	return &copied, nil
}

func (s *MemorySessionStore) Save(session *CachedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.session = &copied
	return nil
}

func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// FileSessionStore persists the session as JSON with owner-only
// permissions, the token being a bearer credential.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Load() (*CachedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCachedSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	var session CachedSession
	if err := json.Unmarshal(raw, &session); err != nil {
		// A corrupt cache is treated as absent, not fatal.
		return nil, ErrNoCachedSession
	}
	if session.SessionID == "" || session.Token == "" {
		return nil, ErrNoCachedSession
	}
	return &session, nil
}

func (s *FileSessionStore) Save(session *CachedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session cache dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
