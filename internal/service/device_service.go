package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/policy"
	"github.com/quickserve/pos-device-access/internal/repository"
)

// ValidationError marks a malformed request: rejected before any
// registry access, distinct from policy denials.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

const negativeLookupTTL = 2 * time.Minute

type DeviceService struct {
	devices     repository.DeviceRepository
	sessions    *SessionService
	authorizer  *Authorizer
	lookupCache NegativeLookupCache
	logger      *slog.Logger
	now         func() time.Time
}

func NewDeviceService(devices repository.DeviceRepository, sessions *SessionService, authorizer *Authorizer, lookupCache NegativeLookupCache, logger *slog.Logger) *DeviceService {
	if lookupCache == nil {
		lookupCache = NewNoopNegativeLookupCache()
	}
	return &DeviceService{
		devices:     devices,
		sessions:    sessions,
		authorizer:  authorizer,
		lookupCache: lookupCache,
		logger:      logger,
		now:         time.Now,
	}
}

// AuthenticateRequest is the validated device authentication contract.
type AuthenticateRequest struct {
	Fingerprint  string
	DeviceName   string
	DeviceType   domain.DeviceType
	Capabilities domain.DeviceCapabilities
	LocationID   string
	Interface    domain.InterfaceType
	UserID       string
	StationID    *string
	IP           string
	UserAgent    string
}

// AuthenticateResult carries the decision plus, on allow, the issued
// session. RequiresApproval distinguishes "ask an administrator" from
// a hard denial.
type AuthenticateResult struct {
	Decision         Decision
	Device           *domain.Device
	Session          *domain.Session
	NewRegistration  bool
	RequiresApproval bool
}

func (r *AuthenticateRequest) validate() error {
	if r.Fingerprint == "" {
		return &ValidationError{Field: "fingerprint", Message: "required"}
	}
	if r.LocationID == "" {
		return &ValidationError{Field: "location_id", Message: "required"}
	}
	if r.Interface == "" {
		return &ValidationError{Field: "interface", Message: "required"}
	}
	if !r.Interface.Valid() {
		return &ValidationError{Field: "interface", Message: "unknown interface type"}
	}
	if r.DeviceType != "" && !r.DeviceType.Valid() {
		return &ValidationError{Field: "device_type", Message: "unknown device type"}
	}
	return nil
}

// Authenticate is the combined flow: find-or-register by fingerprint,
// authorize the (device, interface, location, user) tuple, refresh the
// device's capability snapshot, and on allow issue a session.
func (s *DeviceService) Authenticate(ctx context.Context, req AuthenticateRequest) (*AuthenticateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	device, created, err := s.findOrRegister(ctx, req)
	if err != nil {
		return nil, err
	}

	// The registry record is refreshed on every contact, allowed or
	// not: operators rely on lastSeen and the capability snapshot for
	// exactly the devices that end up pending, blocked, or denied.
	// Best-effort: a touch failure must never block the flow.
	if !created {
		caps := req.Capabilities
		caps.UserAgent = req.UserAgent
		seenAt := s.now().UTC()
		if err := s.devices.Touch(ctx, device.ID, caps, req.DeviceName, seenAt); err != nil {
			s.logger.WarnContext(ctx, "device touch failed",
				"device_id", device.ID, "error", err)
		} else {
			device.Capabilities = caps
			device.LastSeenAt = seenAt
			if req.DeviceName != "" {
				device.Name = req.DeviceName
			}
		}
	}

	decision := s.authorizer.Authorize(device, AccessRequest{
		Interface:  req.Interface,
		LocationID: req.LocationID,
		UserID:     req.UserID,
		IP:         req.IP,
	})
	observability.RecordAuthorizationDecision(ctx, string(decision.Outcome), string(req.Interface))

	result := &AuthenticateResult{
		Decision:         decision,
		Device:           device,
		NewRegistration:  created,
		RequiresApproval: decision.Outcome == OutcomeNeedsApproval,
	}
	if !decision.Allowed() {
		return result, nil
	}

	session, err := s.sessions.Create(ctx, CreateSessionParams{
		DeviceID:    device.ID,
		UserID:      req.UserID,
		LocationID:  req.LocationID,
		Interface:   req.Interface,
		StationID:   req.StationID,
		IP:          req.IP,
		Permissions: decision.Permissions,
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

func (s *DeviceService) findOrRegister(ctx context.Context, req AuthenticateRequest) (*domain.Device, bool, error) {
	skipLookup := false
	if hit, err := s.lookupCache.Get(ctx, req.Fingerprint); err == nil && hit {
		skipLookup = true
	}
	if !skipLookup {
		device, err := s.devices.FindByFingerprint(ctx, req.Fingerprint)
		if err == nil {
			return device, false, nil
		}
		if !errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, false, err
		}
		_ = s.lookupCache.Set(ctx, req.Fingerprint, negativeLookupTTL)
	}

	device := s.buildRegistration(req)
	err := s.devices.Create(ctx, device)
	if err == nil {
		_ = s.lookupCache.Invalidate(ctx, req.Fingerprint)
		observability.RecordDeviceRegistration(ctx, string(device.Type), string(device.Status))
		s.logger.InfoContext(ctx, "device registered",
			"device_id", device.ID,
			"device_type", device.Type,
			"status", device.Status,
			"fingerprint", device.Fingerprint)
		return device, true, nil
	}
	if errors.Is(err, repository.ErrDuplicateFingerprint) {
		// Lost the first-registration race; the winner's record is
		// authoritative.
		_ = s.lookupCache.Invalidate(ctx, req.Fingerprint)
		existing, lookupErr := s.devices.FindByFingerprint(ctx, req.Fingerprint)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	return nil, false, err
}

func (s *DeviceService) buildRegistration(req AuthenticateRequest) *domain.Device {
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeTabletPOS
	}
	name := req.DeviceName
	if name == "" {
		name = fmt.Sprintf("%s Device", deviceType)
	}
	status := domain.DeviceStatusActive
	requiresApproval := policy.RequiresApproval(deviceType, req.Interface)
	if requiresApproval {
		status = domain.DeviceStatusPendingApproval
	}
	registeredBy := req.UserID
	if registeredBy == "" {
		registeredBy = "self-registration"
	}
	caps := req.Capabilities
	caps.UserAgent = req.UserAgent
	locationID := req.LocationID
	return &domain.Device{
		ID:                uuid.NewString(),
		Fingerprint:       req.Fingerprint,
		Name:              name,
		Type:              deviceType,
		Status:            status,
		Capabilities:      caps,
		LocationID:        &locationID,
		AllowedInterfaces: policy.DefaultAllowedInterfaces(deviceType),
		Restrictions: domain.DeviceRestrictions{
			RequiresApproval:   requiresApproval,
			LocationRestricted: deviceType != domain.DeviceTypeMobilePOS,
		},
		RegisteredBy: registeredBy,
		LastSeenAt:   s.now().UTC(),
	}
}

func (s *DeviceService) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return s.devices.FindByID(ctx, id)
}

func (s *DeviceService) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Device, error) {
	return s.devices.FindByFingerprint(ctx, fingerprint)
}

func (s *DeviceService) List(ctx context.Context, locationID string, status domain.DeviceStatus) ([]domain.Device, error) {
	return s.devices.List(ctx, locationID, status)
}

// Approve activates a PENDING_APPROVAL device.
func (s *DeviceService) Approve(ctx context.Context, deviceID string) error {
	return s.transition(ctx, deviceID, domain.DeviceStatusActive, "approved")
}

// Reject blocks a PENDING_APPROVAL device outright.
func (s *DeviceService) Reject(ctx context.Context, deviceID string) error {
	return s.transition(ctx, deviceID, domain.DeviceStatusBlocked, "rejected")
}

// Suspend blocks a device and cascades termination over its sessions.
// A session mid-creation may slip past the cascade; every sensitive
// access re-validates device status, so it dies on its next check.
func (s *DeviceService) Suspend(ctx context.Context, deviceID string) error {
	if err := s.transition(ctx, deviceID, domain.DeviceStatusBlocked, "suspended"); err != nil {
		return err
	}
	count, err := s.sessions.TerminateAllForDevice(ctx, deviceID, "device_suspended")
	if err != nil {
		s.logger.ErrorContext(ctx, "suspension cascade failed",
			"device_id", deviceID, "error", err)
		return err
	}
	s.logger.InfoContext(ctx, "device suspended",
		"device_id", deviceID, "terminated_sessions", count)
	return nil
}

// Reactivate restores a suspended or inactive device.
func (s *DeviceService) Reactivate(ctx context.Context, deviceID string) error {
	return s.transition(ctx, deviceID, domain.DeviceStatusActive, "reactivated")
}

// SetMaintenance takes a device out of rotation without killing its
// sessions; the use-time re-check denies further access.
func (s *DeviceService) SetMaintenance(ctx context.Context, deviceID string) error {
	return s.transition(ctx, deviceID, domain.DeviceStatusMaintenance, "maintenance")
}

func (s *DeviceService) transition(ctx context.Context, deviceID string, status domain.DeviceStatus, action string) error {
	if err := s.devices.UpdateStatus(ctx, deviceID, status); err != nil {
		return err
	}
	observability.RecordDeviceTransition(ctx, action)
	return nil
}
