// Package policy holds the static interface permission table: which
// roles, permissions, and device capabilities each POS interface
// requires, plus the registration defaults derived from device type.
package policy

import "github.com/quickserve/pos-device-access/internal/domain"

type AccessLevel string

const (
	AccessLevelPublic     AccessLevel = "public"
	AccessLevelStaff      AccessLevel = "staff"
	AccessLevelManagement AccessLevel = "management"
)

const (
	PermBaseAccess      = "pos:access"
	PermOrderEntry      = "pos:order_entry"
	PermKitchenDisplay  = "pos:kitchen_display"
	PermPayments        = "pos:payment_processing"
	PermRefunds         = "pos:refunds"
	PermManagerFunction = "pos:manager_functions"
	PermOverride        = "pos:override"
	PermStaffManagement = "pos:staff_management"
)

// CapabilityMinimums are the device capabilities an interface refuses
// to run without. Zero values mean "no requirement".
type CapabilityMinimums struct {
	MinScreenWidth  int
	MinScreenHeight int
	Touch           bool
	CardReader      bool
}

type InterfaceRequirements struct {
	AccessLevel         AccessLevel
	RequiredPermissions []string
	AllowedRoles        []string
	MinimumCapabilities CapabilityMinimums
}

var interfaceTable = map[domain.InterfaceType]InterfaceRequirements{
	domain.InterfaceCustomerKiosk: {
		AccessLevel:         AccessLevelPublic,
		RequiredPermissions: []string{PermBaseAccess},
		AllowedRoles:        []string{"staff", "shift_lead", "manager", "admin"},
		MinimumCapabilities: CapabilityMinimums{MinScreenWidth: 768, MinScreenHeight: 768, Touch: true},
	},
	domain.InterfaceOrderEntry: {
		AccessLevel:         AccessLevelStaff,
		RequiredPermissions: []string{PermBaseAccess, PermOrderEntry},
		AllowedRoles:        []string{"staff", "shift_lead", "manager", "admin"},
	},
	domain.InterfaceKitchenDisplay: {
		AccessLevel:         AccessLevelStaff,
		RequiredPermissions: []string{PermBaseAccess, PermKitchenDisplay},
		AllowedRoles:        []string{"staff", "shift_lead", "manager", "admin"},
		MinimumCapabilities: CapabilityMinimums{MinScreenWidth: 1280, MinScreenHeight: 720},
	},
	domain.InterfacePaymentTerminal: {
		AccessLevel:         AccessLevelStaff,
		RequiredPermissions: []string{PermBaseAccess, PermPayments},
		AllowedRoles:        []string{"shift_lead", "manager", "admin"},
		MinimumCapabilities: CapabilityMinimums{CardReader: true},
	},
	domain.InterfaceManagerTerminal: {
		AccessLevel:         AccessLevelManagement,
		RequiredPermissions: []string{PermBaseAccess, PermManagerFunction},
		AllowedRoles:        []string{"manager", "admin"},
	},
}

// Requirements returns the permission table entry for an interface.
func Requirements(iface domain.InterfaceType) (InterfaceRequirements, bool) {
	req, ok := interfaceTable[iface]
	return req, ok
}

// GrantedPermissions is the permission set attached to a session for a
// given interface. Unknown interfaces get base access only.
func GrantedPermissions(iface domain.InterfaceType) []string {
	switch iface {
	case domain.InterfaceManagerTerminal:
		return []string{PermBaseAccess, PermManagerFunction, PermOverride, PermStaffManagement}
	case domain.InterfacePaymentTerminal:
		return []string{PermBaseAccess, PermPayments, PermRefunds}
	case domain.InterfaceKitchenDisplay:
		return []string{PermBaseAccess, PermKitchenDisplay}
	case domain.InterfaceOrderEntry:
		return []string{PermBaseAccess, PermOrderEntry}
	default:
		return []string{PermBaseAccess}
	}
}

// DefaultAllowedInterfaces is the fixed registration-time allow-list
// per device type. Single-purpose hardware gets exactly its own
// interface; manager stations may drive every staff surface.
func DefaultAllowedInterfaces(t domain.DeviceType) []domain.InterfaceType {
	switch t {
	case domain.DeviceTypeCustomerKiosk:
		return []domain.InterfaceType{domain.InterfaceCustomerKiosk}
	case domain.DeviceTypeKitchenDisplay:
		return []domain.InterfaceType{domain.InterfaceKitchenDisplay}
	case domain.DeviceTypePaymentTerminal:
		return []domain.InterfaceType{domain.InterfacePaymentTerminal}
	case domain.DeviceTypeManagerStation:
		return []domain.InterfaceType{
			domain.InterfaceManagerTerminal,
			domain.InterfaceOrderEntry,
			domain.InterfacePaymentTerminal,
			domain.InterfaceKitchenDisplay,
		}
	case domain.DeviceTypeMobilePOS:
		return []domain.InterfaceType{domain.InterfaceOrderEntry, domain.InterfacePaymentTerminal}
	case domain.DeviceTypeTabletPOS:
		return []domain.InterfaceType{domain.InterfaceOrderEntry, domain.InterfaceCustomerKiosk}
	default:
		return nil
	}
}

// RequiresApproval decides whether a first-time registration starts
// PENDING_APPROVAL. Sensitive interfaces and management-class hardware
// always start gated.
func RequiresApproval(t domain.DeviceType, requested domain.InterfaceType) bool {
	if requested == domain.InterfaceManagerTerminal || requested == domain.InterfacePaymentTerminal {
		return true
	}
	return t == domain.DeviceTypeManagerStation
}

// MeetsMinimums checks a capability snapshot against an interface's
// hardware floor.
func MeetsMinimums(caps domain.DeviceCapabilities, min CapabilityMinimums) bool {
	if min.MinScreenWidth > 0 && caps.ScreenWidth < min.MinScreenWidth {
		return false
	}
	if min.MinScreenHeight > 0 && caps.ScreenHeight < min.MinScreenHeight {
		return false
	}
	if min.Touch && !caps.Touch {
		return false
	}
	if min.CardReader && !caps.CardReader {
		return false
	}
	return true
}
