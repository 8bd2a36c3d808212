package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionFilter narrows List queries. Empty fields match everything.
type SessionFilter struct {
	DeviceID   string
	UserID     string
	LocationID string
	Status     domain.SessionStatus
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	Terminate(ctx context.Context, id, reason string) (bool, error)
	TerminateAllForDevice(ctx context.Context, deviceID, reason string) (int64, error)
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "success")
	return &s, nil
}

func (r *GormSessionRepository) List(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	q := r.db.WithContext(ctx).Model(&domain.Session{})
	if filter.DeviceID != "" {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.LocationID != "" {
		q = q.Where("location_id = ?", filter.LocationID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var sessions []domain.Session
	if err := q.Order("started_at DESC").Find(&sessions).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list", "success")
	return sessions, nil
}

// UpdateLastActivity writes last_activity_at only. Heartbeats race;
// last-write-wins is fine because the field is advisory telemetry.
// It deliberately never touches expires_at.
func (r *GormSessionRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND status <> ?", id, domain.SessionStatusExpired).
		Update("last_activity_at", at)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "heartbeat", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "heartbeat", "not_found")
		return ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "session", "heartbeat", "success")
	return nil
}

// Terminate marks the session EXPIRED with a reason. Terminating an
// already-terminated or missing session reports changed=false, not an
// error; the caller's intent is already satisfied.
func (r *GormSessionRepository) Terminate(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND status <> ?", id, domain.SessionStatusExpired).
		Updates(map[string]any{"status": domain.SessionStatusExpired, "ended_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "terminate", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "terminate", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) TerminateAllForDevice(ctx context.Context, deviceID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("device_id = ? AND status <> ?", deviceID, domain.SessionStatusExpired).
		Updates(map[string]any{"status": domain.SessionStatusExpired, "ended_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "terminate_all_for_device", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "terminate_all_for_device", "success")
	return res.RowsAffected, nil
}

// MarkExpiredBefore is the sweep: any non-terminated session whose
// absolute expiry is behind the cutoff gets its cached status fixed up.
func (r *GormSessionRepository) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("expires_at <= ? AND status <> ?", cutoff, domain.SessionStatusExpired).
		Updates(map[string]any{"status": domain.SessionStatusExpired, "ended_reason": "expired"})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "mark_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "mark_expired", "success")
	return res.RowsAffected, nil
}
