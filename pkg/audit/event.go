package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the security transition an AuditEvent records
type EventKind string

const (
	EventAuthLogin        EventKind = "auth_login"
	EventAuthLogout       EventKind = "auth_logout"
	EventDeviceNew        EventKind = "device_new"
	EventDeviceRevoked    EventKind = "device_revoked"
	EventDeviceTrusted    EventKind = "device_trusted"
	EventDeviceTrustReset EventKind = "device_trust_reset"
)

// Valid reports whether k is one of the known event kinds
func (k EventKind) Valid() bool {
	switch k {
	case EventAuthLogin, EventAuthLogout, EventDeviceNew,
		EventDeviceRevoked, EventDeviceTrusted, EventDeviceTrustReset:
		return true
	}
	return false
}

// DeviceSnapshot is a copy of the descriptive device fields taken when the
// event was written. It is never updated from the live device row.
type DeviceSnapshot struct {
	ID       string `json:"id"` // device fingerprint
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// AuditEvent is a single immutable entry of the audit trail
type AuditEvent struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    uuid.UUID       `json:"actorId"`
	Event      EventKind       `json:"event"`
	IP         string          `json:"ip,omitempty"`
	DeviceInfo *DeviceSnapshot `json:"deviceInfo,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// clone returns a copy that shares no memory with e
func (e AuditEvent) clone() AuditEvent {
	if e.DeviceInfo != nil {
		snapshot := *e.DeviceInfo
		e.DeviceInfo = &snapshot
	}
	return e
}
