package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickserve/pos-device-access/internal/domain"
)

func TestDeviceRepositoryFingerprintUniqueness(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	ctx := context.Background()

	first := newTestDevice("dev-1", "fp-shared")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	dup := newTestDevice("dev-2", "fp-shared")
	err := repo.Create(ctx, dup)
	if !errors.Is(err, ErrDuplicateFingerprint) {
		t.Fatalf("expected ErrDuplicateFingerprint, got %v", err)
	}

	found, err := repo.FindByFingerprint(ctx, "fp-shared")
	if err != nil {
		t.Fatalf("find after conflict: %v", err)
	}
	if found.ID != "dev-1" {
		t.Fatalf("conflict retry-as-lookup should land on the first record, got %s", found.ID)
	}
}

func TestDeviceRepositoryFindByFingerprintNotFound(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	_, err := repo.FindByFingerprint(context.Background(), "fp-missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDeviceRepositoryTouchIdempotent(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	ctx := context.Background()

	d := newTestDevice("dev-touch", "fp-touch")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	caps := d.Capabilities
	caps.Camera = true
	t1 := time.Now().UTC().Truncate(time.Second)
	if err := repo.Touch(ctx, d.ID, caps, "", t1); err != nil {
		t.Fatalf("first touch: %v", err)
	}
	t2 := t1.Add(time.Minute)
	if err := repo.Touch(ctx, d.ID, caps, "", t2); err != nil {
		t.Fatalf("second touch: %v", err)
	}

	got, err := repo.FindByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.DeviceStatusActive {
		t.Errorf("touch must not regress status, got %s", got.Status)
	}
	if got.Fingerprint != "fp-touch" {
		t.Errorf("touch must not change fingerprint, got %s", got.Fingerprint)
	}
	if !reflect.DeepEqual(got.AllowedInterfaces, d.AllowedInterfaces) {
		t.Errorf("touch must not change allowed interfaces: %v", got.AllowedInterfaces)
	}
	if !got.Capabilities.Camera {
		t.Error("touch should replace the capability snapshot")
	}
	if !got.LastSeenAt.After(t1.Add(-time.Second)) {
		t.Errorf("last seen should advance, got %v", got.LastSeenAt)
	}
}

func TestDeviceRepositoryTouchUpdatesNameWhenSupplied(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	ctx := context.Background()

	d := newTestDevice("dev-name", "fp-name")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Touch(ctx, d.ID, d.Capabilities, "Line 2 KDS", time.Now().UTC()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := repo.FindByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Line 2 KDS" {
		t.Fatalf("expected renamed device, got %q", got.Name)
	}
}

func TestDeviceRepositoryUpdateStatus(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	ctx := context.Background()

	d := newTestDevice("dev-status", "fp-status")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateStatus(ctx, d.ID, domain.DeviceStatusBlocked); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := repo.FindByID(ctx, d.ID)
	if got.Status != domain.DeviceStatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", got.Status)
	}
	if err := repo.UpdateStatus(ctx, "nope", domain.DeviceStatusActive); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestDeviceRepositoryListFilters(t *testing.T) {
	repo := newDeviceRepoForTest(t)
	ctx := context.Background()

	loc1 := "loc-1"
	a := newTestDevice("dev-a", "fp-a")
	a.LocationID = &loc1
	b := newTestDevice("dev-b", "fp-b")
	b.LocationID = &loc1
	b.Status = domain.DeviceStatusPendingApproval
	c := newTestDevice("dev-c", "fp-c")

	for _, d := range []*domain.Device{a, b, c} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("create %s: %v", d.ID, err)
		}
	}

	got, err := repo.List(ctx, "loc-1", "")
	if err != nil {
		t.Fatalf("list by location: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 devices at loc-1, got %d", len(got))
	}
	got, err = repo.List(ctx, "loc-1", domain.DeviceStatusPendingApproval)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dev-b" {
		t.Fatalf("expected only dev-b pending, got %+v", got)
	}
}

func newTestDevice(id, fp string) *domain.Device {
	return &domain.Device{
		ID:                id,
		Fingerprint:       fp,
		Name:              "Kitchen Display Device",
		Type:              domain.DeviceTypeKitchenDisplay,
		Status:            domain.DeviceStatusActive,
		Capabilities:      domain.DeviceCapabilities{ScreenWidth: 1920, ScreenHeight: 1080, Connection: domain.ConnectionEthernet},
		AllowedInterfaces: []domain.InterfaceType{domain.InterfaceKitchenDisplay},
		RegisteredBy:      "system",
		LastSeenAt:        time.Now().UTC(),
	}
}

func newDeviceRepoForTest(t *testing.T) DeviceRepository {
	t.Helper()
	return NewDeviceRepository(openTestDB(t, &domain.Device{}))
}

func openTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
