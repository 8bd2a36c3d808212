package service

import (
	"fmt"
	"time"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/policy"
)

type Outcome string

const (
	OutcomeAllow         Outcome = "allow"
	OutcomeDeny          Outcome = "deny"
	OutcomeNeedsApproval Outcome = "needs_approval"
)

// Decision is a first-class authorization outcome. Denials are not
// errors; they always carry a human-readable reason.
type Decision struct {
	Outcome     Outcome
	Reason      string
	Permissions []string
}

func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// AccessRequest is what a device asks for: an interface at a location,
// optionally on behalf of a user.
type AccessRequest struct {
	Interface  domain.InterfaceType
	LocationID string
	UserID     string
	IP         string
}

// Authorizer applies the device access policy. Pure except for the
// clock, which is injectable for time-window tests.
type Authorizer struct {
	now func() time.Time
}

func NewAuthorizer() *Authorizer { return &Authorizer{now: time.Now} }

// Authorize runs the ordered decision procedure; the first matching
// rule wins. No code path may bypass a BLOCKED or MAINTENANCE device,
// and location-restricted devices never cross locations.
func (a *Authorizer) Authorize(device *domain.Device, req AccessRequest) Decision {
	switch device.Status {
	case domain.DeviceStatusPendingApproval:
		return Decision{Outcome: OutcomeNeedsApproval, Reason: "Device pending approval"}
	case domain.DeviceStatusBlocked:
		return deny("Device is blocked")
	case domain.DeviceStatusMaintenance:
		return deny("Device is in maintenance mode")
	case domain.DeviceStatusInactive:
		return deny("Device is inactive")
	}

	if device.Restrictions.LocationRestricted {
		if device.LocationID == nil || *device.LocationID != req.LocationID {
			return deny("Device not authorized for this location")
		}
	}

	if !device.AllowsInterface(req.Interface) {
		return deny("Interface not permitted on this device")
	}

	if reqs, ok := policy.Requirements(req.Interface); ok {
		if !policy.MeetsMinimums(device.Capabilities, reqs.MinimumCapabilities) {
			return deny(fmt.Sprintf("Device does not meet %s hardware requirements", req.Interface))
		}
	}

	if len(device.Restrictions.AllowedTimeWindows) > 0 &&
		!inAnyWindow(device.Restrictions.AllowedTimeWindows, a.now()) {
		return deny("Access not permitted at this time")
	}

	if len(device.Restrictions.IPAllowlist) > 0 && !ipAllowed(device.Restrictions.IPAllowlist, req.IP) {
		return deny("Device not authorized from this address")
	}

	if device.AssignedUserID != nil && *device.AssignedUserID != req.UserID {
		return deny("Device assigned to different user")
	}

	return Decision{
		Outcome:     OutcomeAllow,
		Permissions: policy.GrantedPermissions(req.Interface),
	}
}

func deny(reason string) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason}
}

func inAnyWindow(windows []domain.TimeWindow, now time.Time) bool {
	day := now.Weekday()
	minutes := now.Hour()*60 + now.Minute()
	for _, w := range windows {
		if !weekdayIn(w.Days, day) {
			continue
		}
		start, okStart := parseClock(w.Start)
		end, okEnd := parseClock(w.End)
		if !okStart || !okEnd {
			continue
		}
		if start <= end {
			if minutes >= start && minutes <= end {
				return true
			}
		} else if minutes >= start || minutes <= end {
			// window crosses midnight
			return true
		}
	}
	return false
}

func weekdayIn(days []time.Weekday, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func parseClock(v string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func ipAllowed(allowlist []string, ip string) bool {
	for _, allowed := range allowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}
