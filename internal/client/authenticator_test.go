package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/fingerprint"
)

type staticEnv struct{ signals fingerprint.Signals }

func (e staticEnv) Read(context.Context) (fingerprint.Signals, error) {
	return e.signals, nil
}

type stubServer struct {
	authCalls       atomic.Int64
	validateAllowed atomic.Bool
	pendingApproval atomic.Bool
	server          *httptest.Server
}

func newStubServer(t *testing.T) *stubServer {
	t.Helper()
	s := &stubServer{}
	s.validateAllowed.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/devices/authenticate", func(w http.ResponseWriter, r *http.Request) {
		s.authCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if s.pendingApproval.Load() {
			w.WriteHeader(http.StatusAccepted)
			writeEnvelope(w, map[string]any{
				"device":            map[string]any{"id": "dev-1"},
				"requires_approval": true,
			})
			return
		}
		writeEnvelope(w, map[string]any{
			"device": map[string]any{"id": "dev-1"},
			"session": map[string]any{
				"id":          "sess-1",
				"device_id":   "dev-1",
				"location_id": "loc-1",
				"interface":   "ORDER_ENTRY",
				"permissions": []string{"pos:access", "pos:order_entry"},
				"expires_at":  time.Now().Add(8 * time.Hour).UTC().Format(time.RFC3339),
			},
			"token": "token-1",
		})
	})
	mux.HandleFunc("POST /api/v1/sessions/{id}/validate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeEnvelope(w, map[string]any{"allowed": s.validateAllowed.Load()})
	})
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func writeEnvelope(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
		"meta":    map[string]any{"request_id": "test", "timestamp": time.Now().UTC()},
	})
}

func newAuthenticatorForTest(t *testing.T, s *stubServer) *Authenticator {
	t.Helper()
	return NewAuthenticator(AuthenticatorConfig{
		API:   NewAPIClient(s.server.URL),
		Store: NewMemorySessionStore(),
		Env: staticEnv{signals: fingerprint.Signals{
			UserAgent: "POSClient/1.0", ScreenWidth: 1024, ScreenHeight: 768,
		}},
		LocationID: "loc-1",
		Interface:  domain.InterfaceOrderEntry,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestEnsureSessionAuthenticatesOnce(t *testing.T) {
	s := newStubServer(t)
	auth := newAuthenticatorForTest(t, s)
	ctx := context.Background()

	first, err := auth.EnsureSession(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.SessionID != "sess-1" || first.Token != "token-1" {
		t.Fatalf("unexpected session %+v", first)
	}

	// Second call resumes the cached session via validation.
	second, err := auth.EnsureSession(ctx)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatal("expected the cached session")
	}
	if calls := s.authCalls.Load(); calls != 1 {
		t.Fatalf("expected one authenticate call, got %d", calls)
	}
}

func TestEnsureSessionReAuthenticatesWhenValidationDenies(t *testing.T) {
	s := newStubServer(t)
	auth := newAuthenticatorForTest(t, s)
	ctx := context.Background()

	if _, err := auth.EnsureSession(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	s.validateAllowed.Store(false)
	if _, err := auth.EnsureSession(ctx); err != nil {
		t.Fatalf("ensure after deny: %v", err)
	}
	if calls := s.authCalls.Load(); calls != 2 {
		t.Fatalf("expected re-authentication, got %d calls", calls)
	}
}

func TestEnsureSessionSurfacesPendingApproval(t *testing.T) {
	s := newStubServer(t)
	s.pendingApproval.Store(true)
	auth := newAuthenticatorForTest(t, s)

	_, err := auth.EnsureSession(context.Background())
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
}

func TestLogoutClearsCache(t *testing.T) {
	s := newStubServer(t)
	auth := newAuthenticatorForTest(t, s)
	ctx := context.Background()

	if _, err := auth.EnsureSession(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := auth.Logout(ctx, "shift_end"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := auth.store.Load(); !errors.Is(err, ErrNoCachedSession) {
		t.Fatal("logout should clear the cache")
	}
	if err := auth.Logout(ctx, "shift_end"); err != nil {
		t.Fatalf("logout without a session should be a no-op: %v", err)
	}
}

func TestAPIErrorFormatting(t *testing.T) {
	err := &APIError{StatusCode: 403, Code: "ACCESS_DENIED", Message: "Interface not permitted on this device"}
	if !strings.Contains(err.Error(), "ACCESS_DENIED") {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}
