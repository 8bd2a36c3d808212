package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/repository"
)

const (
	DefaultSessionDuration = 8 * time.Hour
	DefaultIdleThreshold   = 30 * time.Minute
)

type SessionService struct {
	sessions        repository.SessionRepository
	devices         repository.DeviceRepository
	authorizer      *Authorizer
	defaultDuration time.Duration
	idleThreshold   time.Duration
	now             func() time.Time
}

func NewSessionService(sessions repository.SessionRepository, devices repository.DeviceRepository, authorizer *Authorizer, defaultDuration, idleThreshold time.Duration) *SessionService {
	if defaultDuration <= 0 {
		defaultDuration = DefaultSessionDuration
	}
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	return &SessionService{
		sessions:        sessions,
		devices:         devices,
		authorizer:      authorizer,
		defaultDuration: defaultDuration,
		idleThreshold:   idleThreshold,
		now:             time.Now,
	}
}

type CreateSessionParams struct {
	DeviceID    string
	UserID      string
	LocationID  string
	Interface   domain.InterfaceType
	StationID   *string
	IP          string
	Permissions []string
}

// Create issues a new session. The absolute expiry is fixed here and
// never silently extended; a device-level max session duration caps
// the default when it is shorter.
func (s *SessionService) Create(ctx context.Context, p CreateSessionParams) (*domain.Session, error) {
	if p.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	userID := p.UserID
	if userID == "" {
		userID = domain.AnonymousUserID
	}
	duration := s.defaultDuration
	if device, err := s.devices.FindByID(ctx, p.DeviceID); err == nil {
		if m := device.Restrictions.MaxSessionMinutes; m != nil && *m > 0 {
			if capped := time.Duration(*m) * time.Minute; capped < duration {
				duration = capped
			}
		}
	}
	now := s.now().UTC()
	session := &domain.Session{
		ID:             uuid.NewString(),
		DeviceID:       p.DeviceID,
		UserID:         userID,
		LocationID:     p.LocationID,
		Interface:      p.Interface,
		StationID:      p.StationID,
		Status:         domain.SessionStatusActive,
		Permissions:    p.Permissions,
		IP:             p.IP,
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(duration),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		observability.RecordSessionEvent(ctx, "create", "error")
		return nil, err
	}
	observability.RecordSessionEvent(ctx, "create", "success")
	return session, nil
}

// Heartbeat advances last activity only. A missing session reads as
// already terminated; that is idempotent success, not an error.
func (s *SessionService) Heartbeat(ctx context.Context, sessionID string) error {
	err := s.sessions.UpdateLastActivity(ctx, sessionID, s.now().UTC())
	if errors.Is(err, repository.ErrSessionNotFound) {
		observability.RecordSessionEvent(ctx, "heartbeat", "gone")
		return nil
	}
	if err != nil {
		observability.RecordSessionEvent(ctx, "heartbeat", "error")
		return err
	}
	observability.RecordSessionEvent(ctx, "heartbeat", "success")
	return nil
}

// Terminate ends a session with a reason. Idempotent: terminating an
// already-terminated or unknown session is a no-op.
func (s *SessionService) Terminate(ctx context.Context, sessionID, reason string) error {
	_, err := s.sessions.Terminate(ctx, sessionID, reason)
	if err != nil {
		observability.RecordSessionEvent(ctx, "terminate", "error")
		return err
	}
	observability.RecordSessionEvent(ctx, "terminate", "success")
	return nil
}

// TerminateAllForDevice cascades over every live session of a device.
// Used when a device is suspended or blocked.
func (s *SessionService) TerminateAllForDevice(ctx context.Context, deviceID, reason string) (int64, error) {
	count, err := s.sessions.TerminateAllForDevice(ctx, deviceID, reason)
	if err != nil {
		observability.RecordSessionEvent(ctx, "terminate_all", "error")
		return count, err
	}
	observability.RecordSessionEvent(ctx, "terminate_all", "success")
	return count, nil
}

// Get returns the session with its status derived from timestamps, so
// a lagging sweep never makes an expired session look live.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Status = session.EffectiveStatus(s.now(), s.idleThreshold)
	return session, nil
}

func (s *SessionService) List(ctx context.Context, filter repository.SessionFilter) ([]domain.Session, error) {
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range sessions {
		sessions[i].Status = sessions[i].EffectiveStatus(now, s.idleThreshold)
	}
	return sessions, nil
}

// IsExpired checks the absolute expiry, independent of stored status.
func (s *SessionService) IsExpired(session *domain.Session) bool {
	return session.Expired(s.now())
}

// ValidateAccess re-checks a live session at use time: the session
// must still be usable and the owning device must still authorize the
// interface. A session created just before its device was suspended
// does not survive this check.
func (s *SessionService) ValidateAccess(ctx context.Context, sessionID string, iface domain.InterfaceType) (Decision, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return deny("Session not found"), nil
		}
		return Decision{}, err
	}
	if !session.Usable(s.now()) {
		return deny("Session expired"), nil
	}
	if session.Interface != iface {
		return deny("Session not issued for this interface"), nil
	}
	device, err := s.devices.FindByID(ctx, session.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return deny("Device no longer registered"), nil
		}
		return Decision{}, err
	}
	return s.authorizer.Authorize(device, AccessRequest{
		Interface:  iface,
		LocationID: session.LocationID,
		UserID:     normalizeUser(session.UserID),
		IP:         session.IP,
	}), nil
}

func normalizeUser(userID string) string {
	if userID == domain.AnonymousUserID {
		return ""
	}
	return userID
}
