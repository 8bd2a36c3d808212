package service

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/repository"
)

type testStack struct {
	devices  repository.DeviceRepository
	sessions repository.SessionRepository
	authz    *Authorizer
	sessSvc  *SessionService
	devSvc   *DeviceService
}

func newTestStack(t *testing.T) *testStack {
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
	authz := NewAuthorizer()
	sessSvc := NewSessionService(sessions, devices, authz, 0, 0)
	devSvc := NewDeviceService(devices, sessSvc, authz, NewInMemoryNegativeLookupCache(), discardLogger())
	return &testStack{devices: devices, sessions: sessions, authz: authz, sessSvc: sessSvc, devSvc: devSvc}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
