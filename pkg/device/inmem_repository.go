package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type deviceKey struct {
	userID   uuid.UUID
	deviceID string
}

// InMemDeviceRepository implements DeviceRepository using in-memory maps.
// A single mutex makes every operation atomic.
type InMemDeviceRepository struct {
	devices map[uuid.UUID]Device
	byKey   map[deviceKey]uuid.UUID
	mu      sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[uuid.UUID]Device),
		byKey:   make(map[deviceKey]uuid.UUID),
	}
}

// UpsertDevice creates or refreshes the (user, fingerprint) device
func (r *InMemDeviceRepository) UpsertDevice(ctx context.Context, params UpsertDeviceParams) (UpsertResult, error) {
	if err := validateUpsert(params); err != nil {
		return UpsertResult{}, err
	}
	seenAt := params.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey{userID: params.UserID, deviceID: params.Info.DeviceID}
	if id, ok := r.byKey[key]; ok {
		device := r.devices[id]
		promoted := refreshDevice(&device, params, seenAt)
		r.devices[id] = device
		slog.Debug("Device refreshed", "userID", params.UserID, "deviceID", device.DeviceID, "promoted", promoted)
		return UpsertResult{Device: device, Promoted: promoted}, nil
	}

	count := 0
	for _, d := range r.devices {
		if d.UserID == params.UserID {
			count++
		}
	}

	device := Device{
		ID:         uuid.New(),
		UserID:     params.UserID,
		DeviceID:   params.Info.DeviceID,
		Name:       params.Info.Name,
		Platform:   params.Info.Platform,
		Status:     DecideInitialTrust(count, params.ForceTrust),
		LastSeenAt: seenAt,
		IPAddress:  params.IPAddress,
		CreatedAt:  seenAt,
		UpdatedAt:  seenAt,
	}
	r.devices[device.ID] = device
	r.byKey[key] = device.ID
	slog.Debug("Device created", "userID", params.UserID, "deviceID", device.DeviceID, "status", device.Status)
	return UpsertResult{Device: device, Created: true}, nil
}

// GetDevice retrieves a device by its record id
func (r *InMemDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return device, nil
}

// GetDeviceByUserAndDeviceID retrieves a user's device by fingerprint
func (r *InMemDeviceRepository) GetDeviceByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[deviceKey{userID: userID, deviceID: deviceID}]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return r.devices[id], nil
}

// FindDevicesByUser returns all devices of a user, most recently seen first
func (r *InMemDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]Device, 0)
	for _, d := range r.devices {
		if d.UserID == userID {
			devices = append(devices, d)
		}
	}
	sortByRecency(devices)
	return devices, nil
}

// CountDevicesByUser returns how many devices a user has
func (r *InMemDeviceRepository) CountDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, d := range r.devices {
		if d.UserID == userID {
			count++
		}
	}
	return count, nil
}

// CompareAndSetStatus moves the device from expected to next
func (r *InMemDeviceRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next Status, bumpTokenVersion bool) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	if device.Status != expected {
		return device, ErrStatusConflict
	}
	device.Status = next
	if bumpTokenVersion {
		device.TokenVersion++
	}
	device.UpdatedAt = time.Now().UTC()
	r.devices[id] = device
	return device, nil
}

// DeleteDevice removes a device
func (r *InMemDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	delete(r.byKey, deviceKey{userID: device.UserID, deviceID: device.DeviceID})
	return nil
}

// snapshot returns every device, used by the file repository
func (r *InMemDeviceRepository) snapshot() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	return devices
}

// restore replaces the contents with devices
func (r *InMemDeviceRepository) restore(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[uuid.UUID]Device, len(devices))
	r.byKey = make(map[deviceKey]uuid.UUID, len(devices))
	for _, d := range devices {
		r.devices[d.ID] = d
		r.byKey[deviceKey{userID: d.UserID, deviceID: d.DeviceID}] = d.ID
	}
}

func validateUpsert(params UpsertDeviceParams) error {
	if params.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if params.Info.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	return nil
}


// refreshDevice applies a repeat login to an existing device and reports
// whether ForceTrust promoted it
func refreshDevice(device *Device, params UpsertDeviceParams, seenAt time.Time) bool {
	device.LastSeenAt = seenAt
	device.IPAddress = params.IPAddress
	if params.Info.Name != "" {
		device.Name = params.Info.Name
	}
	if params.Info.Platform != "" {
		device.Platform = params.Info.Platform
	}
	device.UpdatedAt = seenAt

	if params.ForceTrust && device.Status == StatusUntrusted {
		device.Status = StatusTrusted
		return true
	}
	return false
}
