package device

import (
	"slices"
	"strings"
)

// sortByRecency orders devices by last seen time, newest first, with the
// fingerprint as a tiebreaker so the order is stable per call
func sortByRecency(devices []Device) {
	slices.SortFunc(devices, func(a, b Device) int {
		if c := b.LastSeenAt.Compare(a.LastSeenAt); c != 0 {
			return c
		}
		return strings.Compare(a.DeviceID, b.DeviceID)
	})
}
