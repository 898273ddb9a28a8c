package sessions

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-trust/pkg/audit"
	"github.com/tendant/simple-trust/pkg/device"
	"github.com/tendant/simple-trust/pkg/errors"
	"github.com/tendant/simple-trust/pkg/notification"
	"github.com/tendant/simple-trust/pkg/user"
)

// CredentialVerifier checks login credentials. It fails with
// InvalidCredentials or AccessDisabled.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (user.User, error)
}

// DeviceRegistry is the part of the device registry sessions depend on
type DeviceRegistry interface {
	RegisterOrUpdateDevice(ctx context.Context, params device.RegisterDeviceParams) (device.Registration, error)
	GetSessionDevice(ctx context.Context, userID uuid.UUID, deviceID string) (device.Device, error)
}

// AuditLogger records authentication events
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID uuid.UUID, kind audit.EventKind, ip string, device *audit.DeviceSnapshot) (audit.AuditEvent, error)
}

// Session is a validated session: the claims and the records they matched
type Session struct {
	Binding Binding
	User    user.User
	Device  device.Device
}

// Manager logs users in and out and validates their sessions
type Manager struct {
	verifier CredentialVerifier
	users    user.UserRepository
	devices  DeviceRegistry
	audit    AuditLogger
	codec    *Codec
	notifier notification.NewDeviceNotifier
}

// Option configures a Manager
type Option func(*Manager)

// WithNotifier sets where new device notices go
func WithNotifier(n notification.NewDeviceNotifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// NewManager creates a session manager
func NewManager(verifier CredentialVerifier, users user.UserRepository, devices DeviceRegistry, auditLogger AuditLogger, codec *Codec, opts ...Option) *Manager {
	m := &Manager{
		verifier: verifier,
		users:    users,
		devices:  devices,
		audit:    auditLogger,
		codec:    codec,
		notifier: notification.NoOpNotifier{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoginParams are the inputs of a login attempt
type LoginParams struct {
	Username  string
	Password  string
	Device    device.DeviceInfo
	IPAddress string
}

// LoginResult is a successful login
type LoginResult struct {
	User      user.User
	Device    device.Device
	NewDevice bool
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials, registers the device and issues a session
// token. The one-shot force trust flag is claimed with a compare-and-clear
// before registration so concurrent logins cannot both use it. Once the
// device is stored the flag stays consumed, even when the device was
// already trusted. It is put back only if nothing was stored.
func (m *Manager) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	if params.Device.DeviceID == "" {
		return LoginResult{}, errors.InvalidInput("deviceId", "required")
	}

	u, err := m.verifier.Verify(ctx, params.Username, params.Password)
	if err != nil {
		slog.Info("Login rejected", "username", params.Username, "code", errors.GetCode(err))
		return LoginResult{}, err
	}

	forceTrust, err := m.users.ClaimForceTrustNextDevice(ctx, u.ID)
	if err != nil {
		return LoginResult{}, errors.InternalWrap(err, "failed to read force trust flag")
	}

	reg, err := m.devices.RegisterOrUpdateDevice(ctx, device.RegisterDeviceParams{
		UserID:     u.ID,
		Info:       params.Device,
		IPAddress:  params.IPAddress,
		ForceTrust: forceTrust,
	})
	if err != nil {
		if forceTrust && reg.Device.ID == uuid.Nil {
			m.restoreForceTrust(ctx, u.ID)
		}
		return LoginResult{}, err
	}
	if forceTrust {
		slog.Info("Force trust consumed", "userID", u.ID, "deviceID", reg.Device.DeviceID, "promoted", reg.ForceTrustApplied)
	}

	d := reg.Device
	token, expiresAt, err := m.codec.Encode(Binding{
		UserID:             u.ID,
		UserTokenVersion:   u.TokenVersion,
		DeviceID:           d.DeviceID,
		DeviceTokenVersion: d.TokenVersion,
	})
	if err != nil {
		return LoginResult{}, err
	}

	if _, err := m.audit.LogEvent(ctx, u.ID, audit.EventAuthLogin, params.IPAddress, d.Snapshot()); err != nil {
		return LoginResult{}, err
	}
	slog.Info("User logged in", "userID", u.ID, "deviceID", d.DeviceID, "deviceStatus", d.Status, "newDevice", reg.Created)

	if reg.Created && (d.Status != device.StatusTrusted || reg.ForceTrustApplied) {
		m.notifyNewDevice(ctx, u, d)
	}

	return LoginResult{
		User:      u,
		Device:    d,
		NewDevice: reg.Created,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout records the end of a validated session. Clearing the token is up
// to the transport.
func (m *Manager) Logout(ctx context.Context, sess Session, ipAddress string) error {
	if _, err := m.audit.LogEvent(ctx, sess.User.ID, audit.EventAuthLogout, ipAddress, sess.Device.Snapshot()); err != nil {
		return err
	}
	slog.Info("User logged out", "userID", sess.User.ID, "deviceID", sess.Device.DeviceID)
	return nil
}

// CurrentSession re-reads the user and device of a validated session
func (m *Manager) CurrentSession(ctx context.Context, sess Session) (user.User, device.Device, error) {
	u, err := m.users.GetUser(ctx, sess.Binding.UserID)
	if stderrors.Is(err, user.ErrUserNotFound) {
		return user.User{}, device.Device{}, errors.NotFound("user", sess.Binding.UserID.String())
	}
	if err != nil {
		return user.User{}, device.Device{}, errors.InternalWrap(err, "failed to load user")
	}
	d, err := m.devices.GetSessionDevice(ctx, u.ID, sess.Binding.DeviceID)
	if err != nil {
		return user.User{}, device.Device{}, err
	}
	return u, d, nil
}

// ValidateClaims accepts a session only while the account and the device
// still carry the token versions it was minted with. Disabled accounts,
// deleted devices and revoked devices are rejected as well.
func (m *Manager) ValidateClaims(ctx context.Context, b Binding) (Session, error) {
	if err := b.validate(); err != nil {
		return Session{}, err
	}

	u, err := m.users.GetUser(ctx, b.UserID)
	if stderrors.Is(err, user.ErrUserNotFound) {
		return Session{}, errors.TokenInvalid("account no longer exists")
	}
	if err != nil {
		return Session{}, errors.InternalWrap(err, "failed to load user")
	}
	if u.Disabled {
		return Session{}, errors.TokenInvalid("account is disabled")
	}
	if u.TokenVersion != b.UserTokenVersion {
		return Session{}, errors.TokenInvalid("session has been revoked")
	}

	d, err := m.devices.GetSessionDevice(ctx, b.UserID, b.DeviceID)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return Session{}, errors.TokenInvalid("device has been removed")
	}
	if err != nil {
		return Session{}, err
	}
	if d.Status == device.StatusRevoked {
		return Session{}, errors.TokenInvalid("device has been revoked")
	}
	if d.TokenVersion != b.DeviceTokenVersion {
		return Session{}, errors.TokenInvalid("device trust has changed")
	}

	return Session{Binding: b, User: u, Device: d}, nil
}

// ValidateToken decodes tokenStr and validates its binding
func (m *Manager) ValidateToken(ctx context.Context, tokenStr string) (Session, error) {
	b, err := m.codec.Decode(tokenStr)
	if err != nil {
		return Session{}, err
	}
	return m.ValidateClaims(ctx, b)
}

func (m *Manager) restoreForceTrust(ctx context.Context, userID uuid.UUID) {
	if err := m.users.SetForceTrustNextDevice(ctx, userID, true); err != nil {
		slog.Error("Failed to restore force trust flag", "userID", userID, "err", err)
		return
	}
	slog.Info("Force trust flag restored", "userID", userID)
}

func (m *Manager) notifyNewDevice(ctx context.Context, u user.User, d device.Device) {
	err := m.notifier.NotifyNewDevice(ctx, notification.NewDeviceNotice{
		UserID:     u.ID,
		Username:   u.Username,
		To:         u.Email,
		DeviceName: d.Name,
		Platform:   d.Platform,
		IPAddress:  d.IPAddress,
		Trusted:    d.Status == device.StatusTrusted,
		SeenAt:     d.LastSeenAt,
	})
	if err != nil {
		slog.Warn("Failed to send new device notice", "userID", u.ID, "deviceID", d.DeviceID, "err", err)
	}
}
