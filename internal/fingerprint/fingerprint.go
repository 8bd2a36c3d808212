package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

var nowFunc = time.Now

// Generate derives the device fingerprint: a SHA-256 hex digest over
// the concatenated environment signals. Identical environments produce
// identical fingerprints; that coarseness is intentional.
func Generate(s Signals) string {
	parts := []string{
		s.UserAgent,
		s.Language,
		s.Platform,
		strconv.Itoa(s.ScreenWidth) + "x" + strconv.Itoa(s.ScreenHeight),
		strconv.Itoa(s.ColorDepth),
		strconv.Itoa(s.TimezoneOffset),
		strconv.Itoa(s.CPUCores),
		strconv.Itoa(s.DeviceMemoryMB),
		s.CanvasSeed,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
