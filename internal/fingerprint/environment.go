// Package fingerprint derives a stable pseudo-identifier and a
// capability snapshot from the signals a device can observe about
// itself. The fingerprint is best-effort identity, not attestation:
// two identical units on the same OS image may collide.
package fingerprint

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quickserve/pos-device-access/internal/domain"
)

// Signals are the raw environment inputs to fingerprinting and
// classification. All fields are optional; absent signals hash as
// empty strings so the digest stays deterministic.
type Signals struct {
	UserAgent      string
	Language       string
	Platform       string
	ScreenWidth    int
	ScreenHeight   int
	ColorDepth     int
	TimezoneOffset int
	CPUCores       int
	DeviceMemoryMB int
	CanvasSeed     string
}

// EnvironmentReader collects Signals from the local machine.
// Implementations must not touch the network.
type EnvironmentReader interface {
	Read(ctx context.Context) (Signals, error)
}

// HostEnvironmentReader reads signals from the local OS. Individual
// probes fail soft: a probe error leaves its field at the zero value.
type HostEnvironmentReader struct {
	UserAgent    string
	Language     string
	ScreenWidth  int
	ScreenHeight int
	ColorDepth   int
}

func (r *HostEnvironmentReader) Read(ctx context.Context) (Signals, error) {
	s := Signals{
		UserAgent:    r.UserAgent,
		Language:     r.Language,
		ScreenWidth:  r.ScreenWidth,
		ScreenHeight: r.ScreenHeight,
		ColorDepth:   r.ColorDepth,
		CPUCores:     runtime.NumCPU(),
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Platform = fmt.Sprintf("%s/%s %s", info.OS, info.KernelArch, info.PlatformVersion)
	} else {
		s.Platform = runtime.GOOS + "/" + runtime.GOARCH
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.DeviceMemoryMB = int(vm.Total / (1 << 20))
	}
	_, offset := nowFunc().Zone()
	s.TimezoneOffset = offset / 60
	return s, nil
}

// Capabilities builds a DeviceCapabilities snapshot from signals plus
// peripheral probes. Every probe is fail-soft: an error reads as "not
// present" rather than aborting detection.
func Capabilities(ctx context.Context, s Signals, probes PeripheralProbes) domain.DeviceCapabilities {
	caps := domain.DeviceCapabilities{
		ScreenWidth:  s.ScreenWidth,
		ScreenHeight: s.ScreenHeight,
		UserAgent:    s.UserAgent,
		Platform:     s.Platform,
		Connection:   domain.ConnectionUnknown,
	}
	caps.Touch = softProbe(ctx, probes.Touch)
	caps.Camera = softProbe(ctx, probes.Camera)
	caps.Microphone = softProbe(ctx, probes.Microphone)
	caps.Bluetooth = softProbe(ctx, probes.Bluetooth)
	caps.NFC = softProbe(ctx, probes.NFC)
	caps.Printer = softProbe(ctx, probes.Printer)
	caps.CashDrawer = softProbe(ctx, probes.CashDrawer)
	caps.BarcodeScanner = softProbe(ctx, probes.BarcodeScanner)
	caps.CardReader = softProbe(ctx, probes.CardReader)
	if probes.Connection != nil {
		if conn, err := probes.Connection(ctx); err == nil {
			caps.Connection = conn
		}
	}
	if probes.Battery != nil {
		if level, charging, err := probes.Battery(ctx); err == nil {
			caps.BatteryLevel = &level
			caps.BatteryCharging = &charging
		}
	}
	return caps
}

// PeripheralProbes are the pluggable hardware checks. Nil probes read
// as absent hardware.
type PeripheralProbes struct {
	Touch          func(ctx context.Context) (bool, error)
	Camera         func(ctx context.Context) (bool, error)
	Microphone     func(ctx context.Context) (bool, error)
	Bluetooth      func(ctx context.Context) (bool, error)
	NFC            func(ctx context.Context) (bool, error)
	Printer        func(ctx context.Context) (bool, error)
	CashDrawer     func(ctx context.Context) (bool, error)
	BarcodeScanner func(ctx context.Context) (bool, error)
	CardReader     func(ctx context.Context) (bool, error)
	Connection     func(ctx context.Context) (domain.ConnectionType, error)
	Battery        func(ctx context.Context) (level float64, charging bool, err error)
}

func softProbe(ctx context.Context, probe func(ctx context.Context) (bool, error)) bool {
	if probe == nil {
		return false
	}
	present, err := probe(ctx)
	if err != nil {
		return false
	}
	return present
}
