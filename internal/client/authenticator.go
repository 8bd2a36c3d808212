package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/fingerprint"
)

// Authenticator drives the device-side login flow: reuse the cached
// session when the server still honors it, otherwise authenticate from
// scratch with a freshly generated fingerprint. No prompts, no typing.
type Authenticator struct {
	api        *APIClient
	store      SessionStore
	env        fingerprint.EnvironmentReader
	probes     fingerprint.PeripheralProbes
	locationID string
	iface      domain.InterfaceType
	deviceName string
	logger     *slog.Logger
	now        func() time.Time
}

type AuthenticatorConfig struct {
	API        *APIClient
	Store      SessionStore
	Env        fingerprint.EnvironmentReader
	Probes     fingerprint.PeripheralProbes
	LocationID string
	Interface  domain.InterfaceType
	DeviceName string
	Logger     *slog.Logger
}

func NewAuthenticator(cfg AuthenticatorConfig) *Authenticator {
	store := cfg.Store
	if store == nil {
		store = NewMemorySessionStore()
	}
	env := cfg.Env
	if env == nil {
		env = &fingerprint.HostEnvironmentReader{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		api:        cfg.API,
		store:      store,
		env:        env,
		probes:     cfg.Probes,
		locationID: cfg.LocationID,
		iface:      cfg.Interface,
		deviceName: cfg.DeviceName,
		logger:     logger,
		now:        time.Now,
	}
}

var ErrPendingApproval = errors.New("device is pending approval")

// EnsureSession returns a usable session, transparently resuming or
// re-authenticating as needed.
func (a *Authenticator) EnsureSession(ctx context.Context) (*CachedSession, error) {
	if cached, err := a.store.Load(); err == nil && !cached.Expired(a.now()) {
		outcome, err := a.api.ValidateSession(ctx, cached.Token, cached.SessionID, a.iface)
		if err == nil && outcome.Allowed {
			return cached, nil
		}
		// Validation refused or unreachable session: drop the cache
		// and fall through to a clean authentication.
		a.logger.InfoContext(ctx, "cached session no longer valid, re-authenticating",
			"session_id", cached.SessionID)
		_ = a.store.Clear()
	}
	return a.authenticate(ctx)
}

func (a *Authenticator) authenticate(ctx context.Context) (*CachedSession, error) {
	signals, err := a.env.Read(ctx)
	if err != nil {
		return nil, err
	}
	caps := fingerprint.Capabilities(ctx, signals, a.probes)

	outcome, err := a.api.Authenticate(ctx, AuthenticatePayload{
		Fingerprint:  fingerprint.Generate(signals),
		DeviceName:   a.deviceName,
		DeviceType:   fingerprint.DetectDeviceType(signals, caps.Touch),
		Capabilities: caps,
		LocationID:   a.locationID,
		Interface:    a.iface,
	})
	if err != nil {
		return nil, err
	}
	if outcome.RequiresApproval {
		return nil, ErrPendingApproval
	}
	if outcome.Session == nil || outcome.Token == "" {
		return nil, errors.New("authentication succeeded without a session")
	}

	cached := &CachedSession{
		SessionID:   outcome.Session.ID,
		DeviceID:    outcome.Device.ID,
		Token:       outcome.Token,
		Interface:   string(outcome.Session.Interface),
		LocationID:  outcome.Session.LocationID,
		Permissions: outcome.Session.Permissions,
		ExpiresAt:   outcome.Session.ExpiresAt,
	}
	if err := a.store.Save(cached); err != nil {
		a.logger.WarnContext(ctx, "session cache write failed", "error", err)
	}
	return cached, nil
}

// Logout terminates the current session and clears the local cache.
func (a *Authenticator) Logout(ctx context.Context, reason string) error {
	cached, err := a.store.Load()
	if errors.Is(err, ErrNoCachedSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.api.Terminate(ctx, cached.Token, cached.SessionID, reason); err != nil {
		return err
	}
	return a.store.Clear()
}
