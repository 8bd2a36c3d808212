package domain

import "time"

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusIdle    SessionStatus = "IDLE"
	SessionStatusExpired SessionStatus = "EXPIRED"
)

// AnonymousUserID is the sentinel user id for sessions opened without a
// human operator (kiosks, kitchen displays).
const AnonymousUserID = "anonymous"

type Session struct {
	ID             string        `gorm:"primaryKey;size:64" json:"id"`
	DeviceID       string        `gorm:"size:64;index;not null" json:"device_id"`
	UserID         string        `gorm:"size:64;index;not null" json:"user_id"`
	LocationID     string        `gorm:"size:64;index;not null" json:"location_id"`
	Interface      InterfaceType `gorm:"size:32;not null" json:"interface"`
	StationID      *string       `gorm:"size:64" json:"station_id,omitempty"`
	Status         SessionStatus `gorm:"size:16;index;not null" json:"status"`
	Permissions    []string      `gorm:"serializer:json" json:"permissions"`
	IP             string        `gorm:"size:64" json:"ip"`
	StartedAt      time.Time     `json:"started_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	ExpiresAt      time.Time     `gorm:"index;not null" json:"expires_at"`
	EndedReason    *string       `gorm:"size:64" json:"ended_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Expired reports whether the session is past its absolute expiry. The
// stored status is a cache of this fact and may lag behind the sweep
// process; callers must trust the timestamp.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// EffectiveStatus derives the session's current state from timestamps.
// ACTIVE and IDLE are both usable; only EXPIRED is terminal.
func (s *Session) EffectiveStatus(now time.Time, idleThreshold time.Duration) SessionStatus {
	if s.Status == SessionStatusExpired {
		return SessionStatusExpired
	}
	if s.Expired(now) {
		return SessionStatusExpired
	}
	if idleThreshold > 0 && now.Sub(s.LastActivityAt) > idleThreshold {
		return SessionStatusIdle
	}
	return SessionStatusActive
}

// Usable reports whether the session still grants interface access.
func (s *Session) Usable(now time.Time) bool {
	return s.Status != SessionStatusExpired && !s.Expired(now)
}
