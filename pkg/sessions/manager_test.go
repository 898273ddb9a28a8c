package sessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-trust/pkg/audit"
	"github.com/tendant/simple-trust/pkg/device"
	"github.com/tendant/simple-trust/pkg/errors"
	"github.com/tendant/simple-trust/pkg/notification"
	"github.com/tendant/simple-trust/pkg/user"
)

const password = "correct horse battery staple"

type env struct {
	manager  *Manager
	users    *user.InMemoryUserRepository
	devices  *device.DeviceService
	audit    *audit.Logger
	notifier *notification.MockNotifier
	user     user.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	users := user.NewInMemoryUserRepository()
	hash, err := user.HashPassword(password)
	require.NoError(t, err)
	u, err := users.CreateUser(context.Background(), user.CreateUserParams{Username: "alice", Email: "alice@example.com", PasswordHash: hash})
	require.NoError(t, err)

	logger := audit.NewLogger(audit.NewInMemRepository())
	devices := device.NewDeviceService(device.NewInMemDeviceRepository(), logger)
	notifier := &notification.MockNotifier{}
	codec := NewCodec("test-secret", "simple-trust", "trust-api", time.Hour)

	return &env{
		manager:  NewManager(user.NewPasswordVerifier(users), users, devices, logger, codec, WithNotifier(notifier)),
		users:    users,
		devices:  devices,
		audit:    logger,
		notifier: notifier,
		user:     u,
	}
}

func (e *env) login(t *testing.T, fp string) LoginResult {
	t.Helper()
	res, err := e.manager.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  password,
		Device:    device.DeviceInfo{DeviceID: fp, Name: "Chrome 126", Platform: "macOS 14"},
		IPAddress: "198.51.100.7",
	})
	require.NoError(t, err)
	return res
}

func (e *env) events(t *testing.T, kind audit.EventKind) []audit.AuditEvent {
	t.Helper()
	events, err := e.audit.ListEvents(context.Background(), e.user.ID, audit.Filter{Event: kind, Limit: audit.MaxListLimit})
	require.NoError(t, err)
	return events
}

func (e *env) validate(t *testing.T, token string) error {
	t.Helper()
	_, err := e.manager.ValidateToken(context.Background(), token)
	return err
}

func TestLogin_TrustLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// first device is trusted
	d1 := e.login(t, "D1")
	assert.Equal(t, device.StatusTrusted, d1.Device.Status)
	assert.True(t, d1.NewDevice)

	// later devices start untrusted
	d2 := e.login(t, "D2")
	assert.Equal(t, device.StatusUntrusted, d2.Device.Status)

	// forced trust applies once
	require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))
	d3 := e.login(t, "D3")
	assert.Equal(t, device.StatusTrusted, d3.Device.Status)
	u, err := e.users.GetUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, u.ForceTrustNextDevice)

	// revoked is terminal
	_, err = e.devices.UpdateStatus(ctx, device.UpdateStatusParams{UserID: e.user.ID, DeviceRecordID: d2.Device.ID, Status: device.StatusRevoked})
	require.NoError(t, err)
	_, err = e.devices.UpdateStatus(ctx, device.UpdateStatusParams{UserID: e.user.ID, DeviceRecordID: d2.Device.ID, Status: device.StatusTrusted})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
	assert.True(t, errors.IsCode(e.validate(t, d2.Token), errors.ErrCodeTokenInvalid))

	// resetting trust invalidates sessions minted for the old device version
	require.NoError(t, e.validate(t, d1.Token))
	reset, err := e.devices.UpdateStatus(ctx, device.UpdateStatusParams{UserID: e.user.ID, DeviceRecordID: d1.Device.ID, Status: device.StatusUntrusted})
	require.NoError(t, err)
	assert.Equal(t, 1, reset.TokenVersion)
	assert.True(t, errors.IsCode(e.validate(t, d1.Token), errors.ErrCodeTokenInvalid))

	// a fresh login on D1 gets a token for the new version
	again := e.login(t, "D1")
	assert.Equal(t, 1, again.Device.TokenVersion)
	require.NoError(t, e.validate(t, again.Token))

	// the device of the calling session cannot be deleted
	sess, err := e.manager.ValidateToken(ctx, again.Token)
	require.NoError(t, err)
	err = e.devices.DeleteDevice(ctx, device.DeleteDeviceParams{UserID: e.user.ID, DeviceRecordID: sess.Device.ID, CallerDeviceID: sess.Binding.DeviceID})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDeviceOperationForbidden))

	assert.Len(t, e.events(t, audit.EventAuthLogin), 4)
	assert.Len(t, e.events(t, audit.EventDeviceNew), 3)
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.manager.Login(ctx, LoginParams{Username: "alice", Password: "nope", Device: device.DeviceInfo{DeviceID: "D1"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))

	_, err = e.manager.Login(ctx, LoginParams{Username: "alice", Password: password})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	hash, err := user.HashPassword("pw")
	require.NoError(t, err)
	_, err = e.users.CreateUser(ctx, user.CreateUserParams{Username: "mallory", PasswordHash: hash, Disabled: true})
	require.NoError(t, err)
	_, err = e.manager.Login(ctx, LoginParams{Username: "mallory", Password: "pw", Device: device.DeviceInfo{DeviceID: "D1"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccessDisabled))

	assert.Empty(t, e.events(t, audit.EventAuthLogin))
}

func TestLogin_ConcurrentForceTrustIsConsumedOnce(t *testing.T) {
	for run := 0; run < 5; run++ {
		e := newEnv(t)
		ctx := context.Background()
		e.login(t, "first")
		require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))

		const logins = 6
		results := make([]LoginResult, logins)
		var wg sync.WaitGroup
		for i := 0; i < logins; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := e.manager.Login(ctx, LoginParams{
					Username: "alice",
					Password: password,
					Device:   device.DeviceInfo{DeviceID: fmt.Sprintf("new-%d", i)},
				})
				assert.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()

		trusted := 0
		for _, r := range results {
			if r.Device.Status == device.StatusTrusted {
				trusted++
			}
		}
		assert.Equal(t, 1, trusted)

		u, err := e.users.GetUser(ctx, e.user.ID)
		require.NoError(t, err)
		assert.False(t, u.ForceTrustNextDevice)
	}
}

func TestLogin_ForceTrustConsumedByExistingTrustedDevice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t, "D1")

	// a forced login on an already trusted device still uses up the flag
	require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))
	d1 := e.login(t, "D1")
	assert.Equal(t, device.StatusTrusted, d1.Device.Status)
	u, err := e.users.GetUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, u.ForceTrustNextDevice)

	d2 := e.login(t, "D2")
	assert.Equal(t, device.StatusUntrusted, d2.Device.Status)
}

// gatedRegistry pauses registration of one fingerprint until released
type gatedRegistry struct {
	DeviceRegistry
	deviceID string
	entered  chan struct{}
	release  chan struct{}
}

func (g *gatedRegistry) RegisterOrUpdateDevice(ctx context.Context, params device.RegisterDeviceParams) (device.Registration, error) {
	if params.Info.DeviceID == g.deviceID {
		close(g.entered)
		<-g.release
	}
	return g.DeviceRegistry.RegisterOrUpdateDevice(ctx, params)
}

func TestLogin_ForceTrustNotHandedOnAfterConcurrentLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t, "D1")
	require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))

	gate := &gatedRegistry{DeviceRegistry: e.devices, deviceID: "D1", entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(user.NewPasswordVerifier(e.users), e.users, gate, e.audit, e.manager.codec)

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(ctx, LoginParams{Username: "alice", Password: password, Device: device.DeviceInfo{DeviceID: "D1"}})
		done <- err
	}()
	<-gate.entered

	// the flag was claimed by the paused login
	d2, err := m.Login(ctx, LoginParams{Username: "alice", Password: password, Device: device.DeviceInfo{DeviceID: "D2"}})
	require.NoError(t, err)
	assert.Equal(t, device.StatusUntrusted, d2.Device.Status)

	close(gate.release)
	require.NoError(t, <-done)

	u, err := e.users.GetUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, u.ForceTrustNextDevice)

	d3 := e.login(t, "D3")
	assert.Equal(t, device.StatusUntrusted, d3.Device.Status)
}

func TestLogin_ForceTrustNotRestoredAfterDeviceStored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t, "D1")
	require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))

	failing := audit.NewLogger(failingAuditRepo{})
	devices := device.NewDeviceService(device.NewInMemDeviceRepository(), failing)
	m := NewManager(user.NewPasswordVerifier(e.users), e.users, devices, failing, e.manager.codec)

	_, err := m.Login(ctx, LoginParams{Username: "alice", Password: password, Device: device.DeviceInfo{DeviceID: "D2"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditWriteFailure))

	u, err := e.users.GetUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, u.ForceTrustNextDevice)
}

type failingRegistry struct {
	DeviceRegistry
}

func (failingRegistry) RegisterOrUpdateDevice(ctx context.Context, params device.RegisterDeviceParams) (device.Registration, error) {
	return device.Registration{}, errors.New(errors.ErrCodeInternal, "storage down")
}

func TestLogin_ForceTrustRestoredOnFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.users.SetForceTrustNextDevice(ctx, e.user.ID, true))

	m := NewManager(user.NewPasswordVerifier(e.users), e.users, failingRegistry{e.devices}, e.audit, e.manager.codec)
	_, err := m.Login(ctx, LoginParams{Username: "alice", Password: password, Device: device.DeviceInfo{DeviceID: "D1"}})
	require.Error(t, err)

	u, err := e.users.GetUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, u.ForceTrustNextDevice)
}

func TestLogin_NotifiesNewDevices(t *testing.T) {
	e := newEnv(t)
	e.login(t, "D1")
	assert.Empty(t, e.notifier.Sent(), "the bootstrap device is not announced")

	e.login(t, "D2")
	e.login(t, "D2")
	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.False(t, sent[0].Trusted)

	// delivery failures never fail the login
	e.notifier.Err = fmt.Errorf("smtp down")
	e.login(t, "D3")
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.login(t, "D1")

	sess, err := e.manager.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, e.manager.Logout(ctx, sess, "198.51.100.7"))

	logouts := e.events(t, audit.EventAuthLogout)
	require.Len(t, logouts, 1)
	assert.Equal(t, "D1", logouts[0].DeviceInfo.ID)
	assert.Equal(t, "198.51.100.7", logouts[0].IP)
}

func TestCurrentSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.login(t, "D1")
	sess, err := e.manager.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	before := len(e.events(t, ""))

	u, d, err := e.manager.CurrentSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, u.ID)
	assert.Equal(t, "D1", d.DeviceID)
	assert.Len(t, e.events(t, ""), before)
}

func TestValidateClaims(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.login(t, "D1")
	e.login(t, "D2")
	good := Binding{UserID: e.user.ID, UserTokenVersion: 0, DeviceID: "D1", DeviceTokenVersion: 0}

	_, err := e.manager.ValidateClaims(ctx, good)
	require.NoError(t, err)

	tests := []struct {
		name string
		b    Binding
	}{
		{"stale user version", Binding{UserID: e.user.ID, UserTokenVersion: 1, DeviceID: "D1"}},
		{"stale device version", Binding{UserID: e.user.ID, DeviceID: "D1", DeviceTokenVersion: 1}},
		{"unknown device", Binding{UserID: e.user.ID, DeviceID: "nope"}},
		{"unknown user", Binding{UserID: uuid.New(), DeviceID: "D1"}},
		{"empty", Binding{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.manager.ValidateClaims(ctx, tt.b)
			assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid), "got %v", err)
		})
	}

	// account wide revocation
	_, err = e.users.IncrementTokenVersion(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, errors.IsCode(e.validate(t, res.Token), errors.ErrCodeTokenInvalid))
}

func TestLogin_AuditFailureFailsLogin(t *testing.T) {
	e := newEnv(t)
	failing := audit.NewLogger(failingAuditRepo{})
	m := NewManager(user.NewPasswordVerifier(e.users), e.users, e.devices, failing, e.manager.codec)

	_, err := m.Login(context.Background(), LoginParams{Username: "alice", Password: password, Device: device.DeviceInfo{DeviceID: "D1"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditWriteFailure))
}

type failingAuditRepo struct{}

func (failingAuditRepo) Append(ctx context.Context, event audit.AuditEvent) error {
	return fmt.Errorf("audit store unavailable")
}

func (failingAuditRepo) ListByActor(ctx context.Context, actorID uuid.UUID, filter audit.Filter) ([]audit.AuditEvent, error) {
	return nil, nil
}
