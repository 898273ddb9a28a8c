package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryUserRepository implements UserRepository using in-memory storage
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[uuid.UUID]User),
	}
}

func (r *InMemoryUserRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemoryUserRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// CreateUser creates a new user
func (r *InMemoryUserRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, params.Username) {
			return User{}, ErrUsernameTaken
		}
	}

	now := time.Now().UTC()
	u := User{
		ID:           uuid.New(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Admin:        params.Admin,
		Disabled:     params.Disabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *InMemoryUserRepository) ClaimForceTrustNextDevice(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false, ErrUserNotFound
	}
	if !u.ForceTrustNextDevice {
		return false, nil
	}
	u.ForceTrustNextDevice = false
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return true, nil
}

func (r *InMemoryUserRepository) SetForceTrustNextDevice(ctx context.Context, id uuid.UUID, value bool) error {
	return r.update(id, func(u *User) {
		u.ForceTrustNextDevice = value
	})
}

func (r *InMemoryUserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := r.update(id, func(u *User) {
		u.TokenVersion++
		version = u.TokenVersion
	})
	return version, err
}

func (r *InMemoryUserRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) (User, error) {
	var updated User
	err := r.update(id, func(u *User) {
		u.DndEnabled = prefs.DndEnabled
		u.DndUntil = prefs.DndUntil
		updated = *u
	})
	return updated, err
}

func (r *InMemoryUserRepository) update(id uuid.UUID, fn func(u *User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *InMemoryUserRepository) snapshot() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users
}

func (r *InMemoryUserRepository) restore(users []User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[uuid.UUID]User, len(users))
	for _, u := range users {
		r.users[u.ID] = u
	}
}
