package user

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/tendant/simple-trust/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt comparison
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("simple-trust"), bcrypt.DefaultCost)

// HashPassword hashes a plaintext password for storage
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// PasswordVerifier checks username and password against stored bcrypt hashes
type PasswordVerifier struct {
	repo UserRepository
}

// NewPasswordVerifier creates a verifier backed by repo
func NewPasswordVerifier(repo UserRepository) *PasswordVerifier {
	return &PasswordVerifier{repo: repo}
}

// Verify returns the account for valid credentials. A disabled account is
// reported only after the password matched.
func (v *PasswordVerifier) Verify(ctx context.Context, username, password string) (User, error) {
	u, err := v.repo.GetUserByUsername(ctx, username)
	if stderrors.Is(err, ErrUserNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.Debug("Login for unknown username", "username", username)
		return User{}, errors.InvalidCredentials()
	}
	if err != nil {
		return User{}, errors.InternalWrap(err, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.Debug("Password mismatch", "userID", u.ID)
		return User{}, errors.InvalidCredentials()
	}
	if u.Disabled {
		slog.Warn("Login attempt on disabled account", "userID", u.ID)
		return User{}, errors.AccessDisabled()
	}
	return u, nil
}
