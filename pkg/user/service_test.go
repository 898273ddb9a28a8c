package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-trust/pkg/errors"
)

func TestPasswordVerifier(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()
	s := NewUserService(repo)

	alice, err := s.CreateUser(ctx, "alice", "alice@example.com", "correct horse", false)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", alice.PasswordHash)

	hash, err := HashPassword("pw")
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, CreateUserParams{Username: "bob", PasswordHash: hash, Disabled: true})
	require.NoError(t, err)

	v := NewPasswordVerifier(repo)

	got, err := v.Verify(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = v.Verify(ctx, "alice", "wrong")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))

	_, err = v.Verify(ctx, "nobody", "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))

	_, err = v.Verify(ctx, "bob", "wrong")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials), "disabled state is not revealed without the password")

	_, err = v.Verify(ctx, "bob", "pw")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccessDisabled))
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	s := NewUserService(NewInMemoryUserRepository())

	_, err := s.CreateUser(ctx, " ", "", "pw", false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	u, err := s.CreateUser(ctx, "carol", "", "pw", true)
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "carol", "", "pw", false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	require.NoError(t, s.ForceTrustNextDevice(ctx, u.ID))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.ForceTrustNextDevice)

	v, err := s.RevokeSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	until := time.Now().Add(time.Hour)
	updated, err := s.UpdatePreferences(ctx, u.ID, Preferences{DndEnabled: false, DndUntil: &until})
	require.NoError(t, err)
	assert.Nil(t, updated.DndUntil)

	_, err = s.RevokeSessions(ctx, uuid.New())
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.True(t, errors.IsCode(s.ForceTrustNextDevice(ctx, uuid.New()), errors.ErrCodeNotFound))
}
