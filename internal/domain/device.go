package domain

import "time"

type DeviceType string

const (
	DeviceTypeCustomerKiosk   DeviceType = "CUSTOMER_KIOSK"
	DeviceTypeKitchenDisplay  DeviceType = "KITCHEN_DISPLAY"
	DeviceTypePaymentTerminal DeviceType = "PAYMENT_TERMINAL"
	DeviceTypeManagerStation  DeviceType = "MANAGER_STATION"
	DeviceTypeMobilePOS       DeviceType = "MOBILE_POS"
	DeviceTypeTabletPOS       DeviceType = "TABLET_POS"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeCustomerKiosk, DeviceTypeKitchenDisplay, DeviceTypePaymentTerminal,
		DeviceTypeManagerStation, DeviceTypeMobilePOS, DeviceTypeTabletPOS:
		return true
	}
	return false
}

type DeviceStatus string

const (
	DeviceStatusActive          DeviceStatus = "ACTIVE"
	DeviceStatusInactive        DeviceStatus = "INACTIVE"
	DeviceStatusMaintenance     DeviceStatus = "MAINTENANCE"
	DeviceStatusPendingApproval DeviceStatus = "PENDING_APPROVAL"
	DeviceStatusBlocked         DeviceStatus = "BLOCKED"
)

type InterfaceType string

const (
	InterfaceOrderEntry      InterfaceType = "ORDER_ENTRY"
	InterfaceKitchenDisplay  InterfaceType = "KITCHEN_DISPLAY"
	InterfacePaymentTerminal InterfaceType = "PAYMENT_TERMINAL"
	InterfaceManagerTerminal InterfaceType = "MANAGER_TERMINAL"
	InterfaceCustomerKiosk   InterfaceType = "CUSTOMER_KIOSK"
)

func (i InterfaceType) Valid() bool {
	switch i {
	case InterfaceOrderEntry, InterfaceKitchenDisplay, InterfacePaymentTerminal,
		InterfaceManagerTerminal, InterfaceCustomerKiosk:
		return true
	}
	return false
}

type ConnectionType string

const (
	ConnectionWifi     ConnectionType = "wifi"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionUnknown  ConnectionType = "unknown"
)

// DeviceCapabilities is the latest hardware snapshot reported by a device.
// It is replaced wholesale on every re-registration contact, never merged.
type DeviceCapabilities struct {
	ScreenWidth     int            `json:"screen_width"`
	ScreenHeight    int            `json:"screen_height"`
	Touch           bool           `json:"touch"`
	Camera          bool           `json:"camera"`
	Microphone      bool           `json:"microphone"`
	Bluetooth       bool           `json:"bluetooth"`
	NFC             bool           `json:"nfc"`
	Printer         bool           `json:"printer"`
	CashDrawer      bool           `json:"cash_drawer"`
	BarcodeScanner  bool           `json:"barcode_scanner"`
	CardReader      bool           `json:"card_reader"`
	UserAgent       string         `json:"user_agent"`
	Platform        string         `json:"platform"`
	Connection      ConnectionType `json:"connection"`
	BatteryLevel    *float64       `json:"battery_level,omitempty"`
	BatteryCharging *bool          `json:"battery_charging,omitempty"`
}

// TimeWindow is a recurring weekly access window. Start and End are
// "HH:MM" in the location's local time.
type TimeWindow struct {
	Days  []time.Weekday `json:"days"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

type DeviceRestrictions struct {
	RequiresApproval   bool         `json:"requires_approval"`
	MaxSessionMinutes  *int         `json:"max_session_minutes,omitempty"`
	AllowedTimeWindows []TimeWindow `json:"allowed_time_windows,omitempty"`
	IPAllowlist        []string     `json:"ip_allowlist,omitempty"`
	LocationRestricted bool         `json:"location_restricted"`
}

type Device struct {
	ID                string             `gorm:"primaryKey;size:64" json:"id"`
	Fingerprint       string             `gorm:"size:64;uniqueIndex;not null" json:"fingerprint"`
	Name              string             `gorm:"size:128" json:"name"`
	Type              DeviceType         `gorm:"size:32;index;not null" json:"type"`
	Status            DeviceStatus       `gorm:"size:32;index;not null" json:"status"`
	Capabilities      DeviceCapabilities `gorm:"serializer:json" json:"capabilities"`
	LocationID        *string            `gorm:"size:64;index" json:"location_id,omitempty"`
	AssignedUserID    *string            `gorm:"size:64" json:"assigned_user_id,omitempty"`
	AllowedInterfaces []InterfaceType    `gorm:"serializer:json" json:"allowed_interfaces"`
	Restrictions      DeviceRestrictions `gorm:"serializer:json" json:"restrictions"`
	RegisteredBy      string             `gorm:"size:64" json:"registered_by"`
	LastSeenAt        time.Time          `json:"last_seen_at"`
	CreatedAt         time.Time          `json:"registered_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// AllowsInterface reports whether the device's interface allow-list
// contains the requested interface.
func (d *Device) AllowsInterface(iface InterfaceType) bool {
	for _, allowed := range d.AllowedInterfaces {
		if allowed == iface {
			return true
		}
	}
	return false
}
