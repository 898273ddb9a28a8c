package device

import (
	"fmt"

	"github.com/tendant/simple-trust/pkg/audit"
)

// Status is the trust state of a device
type Status string

const (
	StatusUntrusted Status = "untrusted"
	StatusTrusted   Status = "trusted"
	StatusRevoked   Status = "revoked"
)

// transitions is the only place that encodes which status changes are legal.
// Revoked is terminal.
var transitions = map[Status][]Status{
	StatusUntrusted: {StatusTrusted, StatusRevoked},
	StatusTrusted:   {StatusRevoked, StatusUntrusted},
	StatusRevoked:   {},
}

// ParseStatus converts client input into a Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown device status: %q", s)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition can leave s
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether a device in status from may move to status to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// resetsTrust reports whether the transition must invalidate sessions bound
// to the device's current token version
func resetsTrust(from, to Status) bool {
	return from == StatusTrusted && to == StatusUntrusted
}

// transitionEvent returns the audit event recorded for a legal transition
func transitionEvent(from, to Status) audit.EventKind {
	switch {
	case to == StatusRevoked:
		return audit.EventDeviceRevoked
	case resetsTrust(from, to):
		return audit.EventDeviceTrustReset
	default:
		return audit.EventDeviceTrusted
	}
}
