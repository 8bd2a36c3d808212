package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/security"
	"github.com/quickserve/pos-device-access/internal/service"
)

func newDeviceHandlerForTest(t *testing.T) (*DeviceHandler, *gorm.DB) {
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
	tokens := security.NewSessionTokenManager("pos-device-access", "pos-clients", "handler-test-secret")
	return NewDeviceHandler(devSvc, tokens), db
}

func kitchenBody(t *testing.T, fingerprint string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"fingerprint": fingerprint,
		"device_type": domain.DeviceTypeKitchenDisplay,
		"location_id": "loc-1",
		"interface":   domain.InterfaceKitchenDisplay,
		"capabilities": map[string]any{
			"screen_width":  1920,
			"screen_height": 1080,
			"connection":    "ethernet",
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

// Direct connections put ip:port in RemoteAddr; the allowlist holds
// bare IPs. A device pinned to its own address must still get in.
func TestAuthenticateAllowlistMatchesPortBearingRemoteAddr(t *testing.T) {
	h, db := newDeviceHandlerForTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/authenticate",
		bytes.NewReader(kitchenBody(t, "fp-ip-1")))
	req.RemoteAddr = "10.0.0.5:51342"
	rr := httptest.NewRecorder()
	h.Authenticate(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var device domain.Device
	if err := db.Where("fingerprint = ?", "fp-ip-1").First(&device).Error; err != nil {
		t.Fatalf("load device: %v", err)
	}
	device.Restrictions.IPAllowlist = []string{"10.0.0.5"}
	if err := db.Save(&device).Error; err != nil {
		t.Fatalf("save restrictions: %v", err)
	}

	// Same IP, fresh ephemeral port.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/devices/authenticate",
		bytes.NewReader(kitchenBody(t, "fp-ip-1")))
	req.RemoteAddr = "10.0.0.5:60881"
	rr = httptest.NewRecorder()
	h.Authenticate(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("allow-listed address: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var envelope struct {
		Data struct {
			Session struct {
				IP string `json:"ip"`
			} `json:"session"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Session.IP != "10.0.0.5" {
		t.Errorf("session should store the bare IP, got %q", envelope.Data.Session.IP)
	}

	// A different address stays out.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/devices/authenticate",
		bytes.NewReader(kitchenBody(t, "fp-ip-1")))
	req.RemoteAddr = "10.0.0.6:51342"
	rr = httptest.NewRecorder()
	h.Authenticate(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign address: expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}
