package device

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-trust/pkg/audit"
	"github.com/tendant/simple-trust/pkg/errors"
)

// maxStatusAttempts bounds how often UpdateStatus re-reads the device after
// losing a compare-and-set race
const maxStatusAttempts = 3

// AuditLogger records device events
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID uuid.UUID, kind audit.EventKind, ip string, device *audit.DeviceSnapshot) (audit.AuditEvent, error)
}

// DeviceService is the device registry. It is the only writer of device state.
type DeviceService struct {
	deviceRepository DeviceRepository
	auditLogger      AuditLogger
	now              func() time.Time
}

// Option configures a DeviceService
type Option func(*DeviceService)

// WithClock replaces the clock used for last seen times
func WithClock(now func() time.Time) Option {
	return func(s *DeviceService) {
		s.now = now
	}
}

// NewDeviceService creates a new device service
func NewDeviceService(deviceRepository DeviceRepository, auditLogger AuditLogger, opts ...Option) *DeviceService {
	s := &DeviceService{
		deviceRepository: deviceRepository,
		auditLogger:      auditLogger,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterDeviceParams describes a successful login from a device
type RegisterDeviceParams struct {
	UserID     uuid.UUID
	Info       DeviceInfo
	IPAddress  string
	ForceTrust bool
}

// Registration is the outcome of RegisterOrUpdateDevice
type Registration struct {
	Device  Device
	Created bool
	// ForceTrustApplied is true when the force flag decided the outcome:
	// a new device created trusted or an untrusted device promoted
	ForceTrustApplied bool
}

// RegisterOrUpdateDevice creates the device on first sight or refreshes it
// on a repeat login. Audit events are written after the device is stored.
func (s *DeviceService) RegisterOrUpdateDevice(ctx context.Context, params RegisterDeviceParams) (Registration, error) {
	if params.UserID == uuid.Nil {
		return Registration{}, errors.InvalidInput("user_id", "required")
	}
	if params.Info.DeviceID == "" {
		return Registration{}, errors.InvalidInput("deviceId", "required")
	}

	result, err := s.deviceRepository.UpsertDevice(ctx, UpsertDeviceParams{
		UserID:     params.UserID,
		Info:       params.Info,
		IPAddress:  params.IPAddress,
		SeenAt:     s.now(),
		ForceTrust: params.ForceTrust,
	})
	if err != nil {
		slog.Error("Failed to register device", "userID", params.UserID, "deviceID", params.Info.DeviceID, "err", err)
		return Registration{}, errors.InternalWrap(err, "failed to register device")
	}

	device := result.Device
	reg := Registration{
		Device:            device,
		Created:           result.Created,
		ForceTrustApplied: result.Promoted || (result.Created && params.ForceTrust && device.Status == StatusTrusted),
	}

	if result.Created {
		slog.Info("New device registered", "userID", params.UserID, "deviceID", device.DeviceID, "status", device.Status)
		if err := s.logEvent(ctx, device, audit.EventDeviceNew, params.IPAddress); err != nil {
			return reg, err
		}
	}
	if reg.ForceTrustApplied {
		slog.Info("Device trusted by forced trust", "userID", params.UserID, "deviceID", device.DeviceID)
		if err := s.logEvent(ctx, device, audit.EventDeviceTrusted, params.IPAddress); err != nil {
			return reg, err
		}
	}
	return reg, nil
}

// ListDevices returns the user's devices, most recently seen first
func (s *DeviceService) ListDevices(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	devices, err := s.deviceRepository.FindDevicesByUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to list devices", "userID", userID, "err", err)
		return nil, errors.InternalWrap(err, "failed to list devices")
	}
	sortByRecency(devices)
	return devices, nil
}

// UpdateStatusParams identifies a status change requested by a device owner
type UpdateStatusParams struct {
	UserID         uuid.UUID
	DeviceRecordID uuid.UUID
	Status         Status
	IPAddress      string
}

// UpdateStatus applies a status transition. The legality check and the write
// are a compare-and-set on the stored status; after a lost race the
// transition is re-checked against the new status.
func (s *DeviceService) UpdateStatus(ctx context.Context, params UpdateStatusParams) (Device, error) {
	if !params.Status.Valid() {
		return Device{}, errors.InvalidInput("status", string(params.Status))
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.ownedDevice(ctx, params.UserID, params.DeviceRecordID)
		if err != nil {
			return Device{}, err
		}
		if !CanTransition(current.Status, params.Status) {
			return current, errors.InvalidTransition(string(current.Status), string(params.Status))
		}

		updated, err := s.deviceRepository.CompareAndSetStatus(ctx, current.ID, current.Status, params.Status, resetsTrust(current.Status, params.Status))
		if stderrors.Is(err, ErrStatusConflict) {
			slog.Warn("Device status changed concurrently, retrying", "deviceID", current.ID, "attempt", attempt+1)
			continue
		}
		if stderrors.Is(err, ErrDeviceNotFound) {
			return Device{}, errors.NotFound("device", params.DeviceRecordID.String())
		}
		if err != nil {
			slog.Error("Failed to update device status", "deviceID", current.ID, "err", err)
			return Device{}, errors.InternalWrap(err, "failed to update device status")
		}

		slog.Info("Device status changed", "userID", params.UserID, "deviceID", updated.DeviceID, "from", current.Status, "to", updated.Status, "tokenVersion", updated.TokenVersion)
		if err := s.logEvent(ctx, updated, transitionEvent(current.Status, params.Status), params.IPAddress); err != nil {
			return updated, err
		}
		return updated, nil
	}

	return Device{}, errors.Newf(errors.ErrCodeInvalidTransition, "device %s is being modified concurrently", params.DeviceRecordID)
}

// DeleteDeviceParams identifies a device removal requested by its owner
type DeleteDeviceParams struct {
	UserID         uuid.UUID
	DeviceRecordID uuid.UUID
	// CallerDeviceID is the fingerprint bound to the requesting session
	CallerDeviceID string
}

// DeleteDevice removes the device record. The device backing the calling
// session cannot be deleted. Audit history is kept.
func (s *DeviceService) DeleteDevice(ctx context.Context, params DeleteDeviceParams) error {
	device, err := s.ownedDevice(ctx, params.UserID, params.DeviceRecordID)
	if err != nil {
		return err
	}
	if device.DeviceID == params.CallerDeviceID {
		return errors.DeviceOperationForbidden("cannot delete the device of the current session")
	}

	if err := s.deviceRepository.DeleteDevice(ctx, device.ID); err != nil {
		if stderrors.Is(err, ErrDeviceNotFound) {
			return errors.NotFound("device", params.DeviceRecordID.String())
		}
		slog.Error("Failed to delete device", "deviceID", device.ID, "err", err)
		return errors.InternalWrap(err, "failed to delete device")
	}
	slog.Info("Device deleted", "userID", params.UserID, "deviceID", device.DeviceID)
	return nil
}

// GetSessionDevice returns the device a session is bound to
func (s *DeviceService) GetSessionDevice(ctx context.Context, userID uuid.UUID, deviceID string) (Device, error) {
	device, err := s.deviceRepository.GetDeviceByUserAndDeviceID(ctx, userID, deviceID)
	if stderrors.Is(err, ErrDeviceNotFound) {
		return Device{}, errors.NotFound("device", deviceID)
	}
	if err != nil {
		return Device{}, errors.InternalWrap(err, "failed to load session device")
	}
	return device, nil
}

// ownedDevice loads a device and hides devices of other users as not found
func (s *DeviceService) ownedDevice(ctx context.Context, userID, id uuid.UUID) (Device, error) {
	device, err := s.deviceRepository.GetDevice(ctx, id)
	if stderrors.Is(err, ErrDeviceNotFound) || (err == nil && device.UserID != userID) {
		return Device{}, errors.NotFound("device", id.String())
	}
	if err != nil {
		return Device{}, errors.InternalWrap(err, "failed to load device")
	}
	return device, nil
}

func (s *DeviceService) logEvent(ctx context.Context, device Device, kind audit.EventKind, ip string) error {
	_, err := s.auditLogger.LogEvent(ctx, device.UserID, kind, ip, device.Snapshot())
	return err
}
