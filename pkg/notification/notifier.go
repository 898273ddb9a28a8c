package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewDeviceNotice describes a login from a device the user has not used before
type NewDeviceNotice struct {
	UserID     uuid.UUID
	Username   string
	To         string // recipient address; empty means the user has none on file
	DeviceName string
	Platform   string
	IPAddress  string
	Trusted    bool
	SeenAt     time.Time
}

// NewDeviceNotifier tells a user about a new sign-in
type NewDeviceNotifier interface {
	NotifyNewDevice(ctx context.Context, notice NewDeviceNotice) error
}

// NoOpNotifier is used when no delivery channel is configured
type NoOpNotifier struct{}

func (NoOpNotifier) NotifyNewDevice(ctx context.Context, notice NewDeviceNotice) error {
	return nil
}
