package user

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const usersFileName = "users.json"

// FileUserRepository keeps users in memory and writes them to a JSON file
// after every mutation
type FileUserRepository struct {
	dataDir string
	store   *InMemoryUserRepository
	mutex   sync.Mutex
}

type userData struct {
	Users []User `json:"users"`
}

// NewFileUserRepository creates a new file-based user repository
func NewFileUserRepository(dataDir string) (*FileUserRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo := &FileUserRepository{dataDir: dataDir, store: NewInMemoryUserRepository()}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileUserRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return r.store.GetUser(ctx, id)
}

func (r *FileUserRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return r.store.GetUserByUsername(ctx, username)
}

func (r *FileUserRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, err := r.store.CreateUser(ctx, params)
	if err != nil {
		return User{}, err
	}
	return u, r.persist()
}

func (r *FileUserRepository) ClaimForceTrustNextDevice(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	claimed, err := r.store.ClaimForceTrustNextDevice(ctx, id)
	if err != nil || !claimed {
		return claimed, err
	}
	if err := r.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *FileUserRepository) SetForceTrustNextDevice(ctx context.Context, id uuid.UUID, value bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.store.SetForceTrustNextDevice(ctx, id, value); err != nil {
		return err
	}
	return r.persist()
}

func (r *FileUserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	version, err := r.store.IncrementTokenVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	return version, r.persist()
}

func (r *FileUserRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, err := r.store.UpdatePreferences(ctx, id, prefs)
	if err != nil {
		return User{}, err
	}
	return u, r.persist()
}

func (r *FileUserRepository) persist() error {
	if err := r.save(); err != nil {
		if loadErr := r.load(); loadErr != nil {
			return fmt.Errorf("failed to save: %w (reload failed: %v)", err, loadErr)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileUserRepository) load() error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, usersFileName))
	if err != nil {
		if os.IsNotExist(err) {
			r.store.restore(nil)
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var ud userData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ud); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	r.store.restore(ud.Users)
	return nil
}

// save writes user data to file atomically
func (r *FileUserRepository) save() error {
	users := r.store.snapshot()
	slices.SortFunc(users, func(a, b User) int { return strings.Compare(a.Username, b.Username) })

	jsonData, err := json.MarshalIndent(userData{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tempFile := filepath.Join(r.dataDir, usersFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, usersFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
