package user

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user storage operations
type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)

	// ClaimForceTrustNextDevice clears the force trust flag only if it is set
	// and reports whether this call cleared it. At most one caller wins.
	ClaimForceTrustNextDevice(ctx context.Context, id uuid.UUID) (bool, error)
	SetForceTrustNextDevice(ctx context.Context, id uuid.UUID, value bool) error

	// IncrementTokenVersion bumps the account token version and returns the new value
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) (User, error)
}
