package user

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-trust/pkg/errors"
)

// UserService covers account operations outside of login
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUser hashes password and stores a new account
func (s *UserService) CreateUser(ctx context.Context, username, email, password string, admin bool) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, errors.InvalidInput("username", "required")
	}
	if password == "" {
		return User{}, errors.InvalidInput("password", "required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, errors.InternalWrap(err, "failed to hash password")
	}

	u, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Admin:        admin,
	})
	if stderrors.Is(err, ErrUsernameTaken) {
		return User{}, errors.Newf(errors.ErrCodeConflict, "username %s is taken", username)
	}
	if err != nil {
		return User{}, errors.InternalWrap(err, "failed to create user")
	}
	slog.Info("User created", "userID", u.ID, "username", u.Username, "admin", u.Admin)
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	return u, translate(err, id)
}

// UpdatePreferences stores the do-not-disturb settings
func (s *UserService) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) (User, error) {
	if !prefs.DndEnabled {
		prefs.DndUntil = nil
	}
	u, err := s.repo.UpdatePreferences(ctx, id, prefs)
	return u, translate(err, id)
}

// ForceTrustNextDevice arms the one-shot flag that trusts the next new
// device the user logs in from
func (s *UserService) ForceTrustNextDevice(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetForceTrustNextDevice(ctx, id, true); err != nil {
		return translate(err, id)
	}
	slog.Info("Force trust armed for next device", "userID", id)
	return nil
}

// RevokeSessions ends every session of the account by bumping its token version
func (s *UserService) RevokeSessions(ctx context.Context, id uuid.UUID) (int, error) {
	version, err := s.repo.IncrementTokenVersion(ctx, id)
	if err != nil {
		return 0, translate(err, id)
	}
	slog.Info("All sessions revoked", "userID", id, "tokenVersion", version)
	return version, nil
}

func translate(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, ErrUserNotFound) {
		return errors.NotFound("user", id.String())
	}
	return errors.InternalWrap(err, "user operation failed")
}
