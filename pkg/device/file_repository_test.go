package device

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeviceRepository(t *testing.T) {
	repo, err := NewFileDeviceRepository(t.TempDir())
	require.NoError(t, err)
	testRepository(t, repo, uuid.New())
}

func TestFileDeviceRepository_ConcurrentFirstLogin(t *testing.T) {
	repo, err := NewFileDeviceRepository(t.TempDir())
	require.NoError(t, err)
	testConcurrentFirstLogin(t, repo, uuid.New())
}

func TestFileDeviceRepository_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	userID := uuid.New()

	repo, err := NewFileDeviceRepository(dir)
	require.NoError(t, err)
	res, err := repo.UpsertDevice(ctx, UpsertDeviceParams{UserID: userID, Info: DeviceInfo{DeviceID: "fp-1", Name: "Safari"}})
	require.NoError(t, err)
	_, err = repo.CompareAndSetStatus(ctx, res.Device.ID, StatusTrusted, StatusUntrusted, true)
	require.NoError(t, err)

	reopened, err := NewFileDeviceRepository(dir)
	require.NoError(t, err)
	got, err := reopened.GetDeviceByUserAndDeviceID(ctx, userID, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, res.Device.ID, got.ID)
	assert.Equal(t, "Safari", got.Name)
	assert.Equal(t, StatusUntrusted, got.Status)
	assert.Equal(t, 1, got.TokenVersion)
}

func TestNewDeviceRepository(t *testing.T) {
	repo, err := NewDeviceRepository("memory", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemDeviceRepository{}, repo)

	repo, err = NewDeviceRepository("file", RepositoryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileDeviceRepository{}, repo)

	_, err = NewDeviceRepository("file", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewDeviceRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewDeviceRepository("mongo", RepositoryConfig{})
	assert.Error(t, err)
}
