package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/observability"
)

var (
	ErrDeviceNotFound       = errors.New("device not found")
	ErrDuplicateFingerprint = errors.New("fingerprint already registered")
)

type DeviceRepository interface {
	Create(ctx context.Context, d *domain.Device) error
	FindByID(ctx context.Context, id string) (*domain.Device, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Device, error)
	Touch(ctx context.Context, id string, caps domain.DeviceCapabilities, name string, seenAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error
	List(ctx context.Context, locationID string, status domain.DeviceStatus) ([]domain.Device, error)
}

type GormDeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) DeviceRepository { return &GormDeviceRepository{db: db} }

// Create inserts a new device. The fingerprint column carries a unique
// index; a concurrent insert of the same fingerprint surfaces as
// ErrDuplicateFingerprint so callers can retry as a lookup.
func (r *GormDeviceRepository) Create(ctx context.Context, d *domain.Device) error {
	err := r.db.WithContext(ctx).Create(d).Error
	if err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(ctx, "device", "create", "conflict")
			return ErrDuplicateFingerprint
		}
		observability.RecordRepositoryOperation(ctx, "device", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "device", "create", "success")
	return nil
}

func (r *GormDeviceRepository) FindByID(ctx context.Context, id string) (*domain.Device, error) {
	var d domain.Device
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "device", "find_by_id", "not_found")
			return nil, ErrDeviceNotFound
		}
		observability.RecordRepositoryOperation(ctx, "device", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "find_by_id", "success")
	return &d, nil
}

func (r *GormDeviceRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Device, error) {
	var d domain.Device
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "device", "find_by_fingerprint", "not_found")
			return nil, ErrDeviceNotFound
		}
		observability.RecordRepositoryOperation(ctx, "device", "find_by_fingerprint", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "find_by_fingerprint", "success")
	return &d, nil
}

// Touch refreshes the capability snapshot and last-seen timestamp on a
// return visit. It never writes status or fingerprint.
func (r *GormDeviceRepository) Touch(ctx context.Context, id string, caps domain.DeviceCapabilities, name string, seenAt time.Time) error {
	updates := map[string]any{
		"capabilities": caps,
		"last_seen_at": seenAt,
	}
	if name != "" {
		updates["name"] = name
	}
	err := r.db.WithContext(ctx).Model(&domain.Device{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "device", "touch", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "device", "touch", "success")
	return nil
}

func (r *GormDeviceRepository) UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.Device{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "device", "update_status", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "device", "update_status", "not_found")
		return ErrDeviceNotFound
	}
	observability.RecordRepositoryOperation(ctx, "device", "update_status", "success")
	return nil
}

func (r *GormDeviceRepository) List(ctx context.Context, locationID string, status domain.DeviceStatus) ([]domain.Device, error) {
	q := r.db.WithContext(ctx).Model(&domain.Device{})
	if locationID != "" {
		q = q.Where("location_id = ?", locationID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var devices []domain.Device
	if err := q.Order("created_at DESC").Find(&devices).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "device", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "device", "list", "success")
	return devices, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
