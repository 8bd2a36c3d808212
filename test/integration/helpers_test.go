package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/http/handler"
	"github.com/quickserve/pos-device-access/internal/http/router"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/security"
	"github.com/quickserve/pos-device-access/internal/service"
)

// testServer runs the full HTTP stack over in-memory sqlite. The
// service handles are exposed so tests can perform administrative
// setup (approvals, status changes) without minting tokens first.
type testServer struct {
	BaseURL  string
	Client   *http.Client
	Devices  *service.DeviceService
	Sessions *service.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Device{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	devices := repository.NewDeviceRepository(db)
	sessions := repository.NewSessionRepository(db)
	authz := service.NewAuthorizer()
	sessSvc := service.NewSessionService(sessions, devices, authz, 0, 0)
	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	devSvc := service.NewDeviceService(devices, sessSvc, authz, service.NewInMemoryNegativeLookupCache(), testLogger)
	tokens := security.NewSessionTokenManager("pos-device-access", "pos-clients", "integration-test-secret")

	mux := router.NewRouter(router.Dependencies{
		DeviceHandler:    handler.NewDeviceHandler(devSvc, tokens),
		SessionHandler:   handler.NewSessionHandler(sessSvc),
		AdminHandler:     handler.NewAdminHandler(devSvc),
		TokenManager:     tokens,
		APIRateLimitRPM:  10000,
		AuthRateLimitRPM: 10000,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{
		BaseURL:  srv.URL,
		Client:   srv.Client(),
		Devices:  devSvc,
		Sessions: sessSvc,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, token string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp, env
}

func authPayload(fingerprint string, deviceType domain.DeviceType, iface domain.InterfaceType) map[string]any {
	return map[string]any{
		"fingerprint": fingerprint,
		"device_name": "test-" + fingerprint,
		"device_type": deviceType,
		"location_id": "loc-1",
		"interface":   iface,
		"capabilities": map[string]any{
			"screen_width":  1920,
			"screen_height": 1080,
			"touch":         true,
			"connection":    "ethernet",
		},
	}
}

type authData struct {
	Device struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"device"`
	Session *struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"session"`
	Token            string `json:"token"`
	NewRegistration  bool   `json:"new_registration"`
	RequiresApproval bool   `json:"requires_approval"`
}

// authenticate posts to the authenticate endpoint and decodes the
// result, failing the test on any transport or decode error.
func (ts *testServer) authenticate(t *testing.T, payload map[string]any) (int, authData) {
	t.Helper()
	resp, env := ts.doJSON(t, http.MethodPost, "/api/v1/devices/authenticate", payload, "")
	var data authData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode authenticate data: %v", err)
		}
	}
	return resp.StatusCode, data
}

// managerToken registers, approves and re-authenticates a manager
// station, returning a token that carries manager permissions.
func (ts *testServer) managerToken(t *testing.T) string {
	t.Helper()
	payload := authPayload("fp-manager-"+t.Name(), domain.DeviceTypeManagerStation, domain.InterfaceManagerTerminal)
	status, data := ts.authenticate(t, payload)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 for new manager station, got %d", status)
	}
	if err := ts.Devices.Approve(context.Background(), data.Device.ID); err != nil {
		t.Fatalf("approve manager station: %v", err)
	}
	status, data = ts.authenticate(t, payload)
	if status != http.StatusOK || data.Token == "" {
		t.Fatalf("expected token after approval, got status=%d", status)
	}
	return data.Token
}
