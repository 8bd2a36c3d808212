package fingerprint

import (
	"strings"

	"github.com/quickserve/pos-device-access/internal/domain"
)

// DetectDeviceType classifies a device from its user agent and screen
// geometry. Priority order: explicit kiosk markers, mobile markers,
// tablet band, large non-touch screens, then a dimension fallback.
func DetectDeviceType(s Signals, touch bool) domain.DeviceType {
	ua := strings.ToLower(s.UserAgent)

	switch {
	case containsAny(ua, "kiosk", "webview-kiosk", "cros kiosk", "fully kiosk", "cast"):
		return domain.DeviceTypeCustomerKiosk
	case containsAny(ua, "iphone", "android") && !strings.Contains(ua, "tablet") && !strings.Contains(ua, "ipad"):
		if strings.Contains(ua, "mobile") || s.ScreenWidth < 480 {
			return domain.DeviceTypeMobilePOS
		}
		return domain.DeviceTypeTabletPOS
	case containsAny(ua, "ipad", "tablet"):
		return domain.DeviceTypeTabletPOS
	}

	longest := s.ScreenWidth
	if s.ScreenHeight > longest {
		longest = s.ScreenHeight
	}
	switch {
	case touch && longest >= 600 && longest <= 1400:
		return domain.DeviceTypeTabletPOS
	case !touch && longest >= 1600:
		return domain.DeviceTypeManagerStation
	case longest < 600 && longest > 0:
		return domain.DeviceTypeMobilePOS
	default:
		return domain.DeviceTypeTabletPOS
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
