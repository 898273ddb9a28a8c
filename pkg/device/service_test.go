package device

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
	"github.com/tendant/simple-trust/pkg/errors"
)

type failingAuditRepo struct{}

func (failingAuditRepo) Append(ctx context.Context, event audit.AuditEvent) error {
	return fmt.Errorf("disk full")
}

func (failingAuditRepo) ListByActor(ctx context.Context, actorID uuid.UUID, filter audit.Filter) ([]audit.AuditEvent, error) {
	return nil, nil
}

func setupDeviceService(t *testing.T) (*DeviceService, *audit.Logger) {
	t.Helper()
	logger := audit.NewLogger(audit.NewInMemRepository())
	return NewDeviceService(NewInMemDeviceRepository(), logger), logger
}

func eventKinds(t *testing.T, logger *audit.Logger, userID uuid.UUID) []audit.EventKind {
	t.Helper()
	events, err := logger.ListEvents(context.Background(), userID, audit.Filter{})
	require.NoError(t, err)
	kinds := make([]audit.EventKind, 0, len(events))
	// oldest first reads better in assertions
	for i := len(events) - 1; i >= 0; i-- {
		kinds = append(kinds, events[i].Event)
	}
	return kinds
}

func register(t *testing.T, s *DeviceService, userID uuid.UUID, fp string, force bool) Registration {
	t.Helper()
	reg, err := s.RegisterOrUpdateDevice(context.Background(), RegisterDeviceParams{
		UserID:     userID,
		Info:       DeviceInfo{DeviceID: fp, Name: "Chrome", Platform: "macOS"},
		IPAddress:  "192.0.2.1",
		ForceTrust: force,
	})
	require.NoError(t, err)
	return reg
}

func TestDeviceService_RegisterOrUpdateDevice(t *testing.T) {
	s, logger := setupDeviceService(t)
	userID := uuid.New()

	d1 := register(t, s, userID, "D1", false)
	assert.True(t, d1.Created)
	assert.False(t, d1.ForceTrustApplied)
	assert.Equal(t, StatusTrusted, d1.Device.Status)

	d2 := register(t, s, userID, "D2", false)
	assert.Equal(t, StatusUntrusted, d2.Device.Status)

	d3 := register(t, s, userID, "D3", true)
	assert.Equal(t, StatusTrusted, d3.Device.Status)
	assert.True(t, d3.ForceTrustApplied)

	again := register(t, s, userID, "D1", false)
	assert.False(t, again.Created)
	assert.Equal(t, d1.Device.ID, again.Device.ID)

	assert.Equal(t, []audit.EventKind{
		audit.EventDeviceNew,
		audit.EventDeviceNew,
		audit.EventDeviceNew, audit.EventDeviceTrusted,
	}, eventKinds(t, logger, userID))
}

func TestDeviceService_ForcePromotesExistingUntrusted(t *testing.T) {
	s, logger := setupDeviceService(t)
	userID := uuid.New()

	register(t, s, userID, "D1", false)
	register(t, s, userID, "D2", false)

	promoted := register(t, s, userID, "D2", true)
	assert.False(t, promoted.Created)
	assert.True(t, promoted.ForceTrustApplied)
	assert.Equal(t, StatusTrusted, promoted.Device.Status)

	// already trusted: force has nothing to do
	noop := register(t, s, userID, "D1", true)
	assert.False(t, noop.ForceTrustApplied)

	kinds := eventKinds(t, logger, userID)
	assert.Equal(t, audit.EventDeviceTrusted, kinds[len(kinds)-1])
	assert.Len(t, kinds, 3)
}

func TestDeviceService_RegisterValidation(t *testing.T) {
	s, _ := setupDeviceService(t)
	_, err := s.RegisterOrUpdateDevice(context.Background(), RegisterDeviceParams{UserID: uuid.New()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestDeviceService_UpdateStatus(t *testing.T) {
	s, logger := setupDeviceService(t)
	ctx := context.Background()
	userID := uuid.New()

	d1 := register(t, s, userID, "D1", false).Device
	d2 := register(t, s, userID, "D2", false).Device

	revoked, err := s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d2.ID, Status: StatusRevoked})
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)

	_, err = s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d2.ID, Status: StatusTrusted})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
	stored, err := s.GetSessionDevice(ctx, userID, "D2")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, stored.Status)

	reset, err := s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d1.ID, Status: StatusUntrusted})
	require.NoError(t, err)
	assert.Equal(t, StatusUntrusted, reset.Status)
	assert.Equal(t, d1.TokenVersion+1, reset.TokenVersion)

	trusted, err := s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d1.ID, Status: StatusTrusted})
	require.NoError(t, err)
	assert.Equal(t, 1, trusted.TokenVersion)

	_, err = s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d1.ID, Status: StatusTrusted})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition), "self transitions are rejected")

	kinds := eventKinds(t, logger, userID)
	assert.Equal(t, []audit.EventKind{audit.EventDeviceRevoked, audit.EventDeviceTrustReset, audit.EventDeviceTrusted}, kinds[2:])
}

func TestDeviceService_UpdateStatusOwnership(t *testing.T) {
	s, _ := setupDeviceService(t)
	ctx := context.Background()
	owner := uuid.New()
	d := register(t, s, owner, "D1", false).Device

	_, err := s.UpdateStatus(ctx, UpdateStatusParams{UserID: uuid.New(), DeviceRecordID: d.ID, Status: StatusRevoked})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = s.UpdateStatus(ctx, UpdateStatusParams{UserID: owner, DeviceRecordID: uuid.New(), Status: StatusRevoked})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = s.UpdateStatus(ctx, UpdateStatusParams{UserID: owner, DeviceRecordID: d.ID, Status: "gone"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestDeviceService_ConcurrentRevokeAndReset(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, _ := setupDeviceService(t)
		ctx := context.Background()
		userID := uuid.New()
		d := register(t, s, userID, "D1", false).Device

		var wg sync.WaitGroup
		var revokeErr, resetErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, revokeErr = s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d.ID, Status: StatusRevoked})
		}()
		go func() {
			defer wg.Done()
			_, resetErr = s.UpdateStatus(ctx, UpdateStatusParams{UserID: userID, DeviceRecordID: d.ID, Status: StatusUntrusted})
		}()
		wg.Wait()

		// revoke always wins eventually since it is legal from both live states
		require.NoError(t, revokeErr)
		final, err := s.GetSessionDevice(ctx, userID, "D1")
		require.NoError(t, err)
		assert.Equal(t, StatusRevoked, final.Status)
		if resetErr != nil {
			assert.True(t, errors.IsCode(resetErr, errors.ErrCodeInvalidTransition))
		}
	}
}

func TestDeviceService_DeleteDevice(t *testing.T) {
	s, logger := setupDeviceService(t)
	ctx := context.Background()
	userID := uuid.New()
	d1 := register(t, s, userID, "D1", false).Device
	d2 := register(t, s, userID, "D2", false).Device
	before := eventKinds(t, logger, userID)

	err := s.DeleteDevice(ctx, DeleteDeviceParams{UserID: userID, DeviceRecordID: d1.ID, CallerDeviceID: "D1"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDeviceOperationForbidden))
	_, err = s.GetSessionDevice(ctx, userID, "D1")
	require.NoError(t, err)

	err = s.DeleteDevice(ctx, DeleteDeviceParams{UserID: uuid.New(), DeviceRecordID: d2.ID, CallerDeviceID: "X"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	require.NoError(t, s.DeleteDevice(ctx, DeleteDeviceParams{UserID: userID, DeviceRecordID: d2.ID, CallerDeviceID: "D1"}))
	_, err = s.GetSessionDevice(ctx, userID, "D2")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	assert.Equal(t, before, eventKinds(t, logger, userID), "audit history is kept")
}

func TestDeviceService_ListDevicesByRecency(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewDeviceService(NewInMemDeviceRepository(), audit.NewLogger(audit.NewInMemRepository()), WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	userID := uuid.New()
	register(t, s, userID, "A", false)
	register(t, s, userID, "B", false)
	register(t, s, userID, "A", false)

	devices, err := s.ListDevices(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "A", devices[0].DeviceID)
	assert.Equal(t, "B", devices[1].DeviceID)
}

func TestDeviceService_AuditFailureFailsOperation(t *testing.T) {
	repo := NewInMemDeviceRepository()
	s := NewDeviceService(repo, audit.NewLogger(failingAuditRepo{}))
	userID := uuid.New()

	_, err := s.RegisterOrUpdateDevice(context.Background(), RegisterDeviceParams{UserID: userID, Info: DeviceInfo{DeviceID: "D1"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuditWriteFailure))

	// the device write already committed
	_, err = repo.GetDeviceByUserAndDeviceID(context.Background(), userID, "D1")
	assert.NoError(t, err)
}
