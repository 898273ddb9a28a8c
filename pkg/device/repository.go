package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-trust/pkg/audit"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	// ErrStatusConflict is returned when the stored status no longer matches
	// the status a compare-and-set expected
	ErrStatusConflict = errors.New("device status changed concurrently")
)

// Device is a user's registered device. DeviceID is the client-generated
// fingerprint and is unique per user.
type Device struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	DeviceID     string    `json:"device_id"`
	Name         string    `json:"name"`
	Platform     string    `json:"platform"`
	Status       Status    `json:"status"`
	TokenVersion int       `json:"token_version"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot copies the descriptive fields for the audit trail
func (d Device) Snapshot() *audit.DeviceSnapshot {
	return &audit.DeviceSnapshot{
		ID:       d.DeviceID,
		Name:     d.Name,
		Platform: d.Platform,
	}
}

// DeviceInfo is the device descriptor a client sends on login
type DeviceInfo struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// UpsertDeviceParams describes a login from a device
type UpsertDeviceParams struct {
	UserID     uuid.UUID
	Info       DeviceInfo
	IPAddress  string
	SeenAt     time.Time
	// ForceTrust is applied to a created device through DecideInitialTrust,
	// with the user's device count read inside the same atomic unit
	ForceTrust bool
}

// UpsertResult reports what UpsertDevice did
type UpsertResult struct {
	Device   Device
	Created  bool
	Promoted bool // an existing untrusted device was promoted by ForceTrust
}

// DeviceRepository defines the interface for device storage operations
type DeviceRepository interface {
	// UpsertDevice creates the (user, fingerprint) row or refreshes it.
	// Concurrent calls for the same pair converge on a single row.
	UpsertDevice(ctx context.Context, params UpsertDeviceParams) (UpsertResult, error)

	GetDevice(ctx context.Context, id uuid.UUID) (Device, error)
	GetDeviceByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (Device, error)
	FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]Device, error)
	CountDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// CompareAndSetStatus moves the device from expected to next, returning
	// ErrStatusConflict if the stored status is no longer expected.
	// bumpTokenVersion increments the device token version in the same write.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next Status, bumpTokenVersion bool) (Device, error)

	// DeleteDevice removes the device row only
	DeleteDevice(ctx context.Context, id uuid.UUID) error
}
