package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const devicesFileName = "devices.json"

// FileDeviceRepository keeps devices in memory and writes the whole set to
// a JSON file after every mutation
type FileDeviceRepository struct {
	dataDir string
	store   *InMemDeviceRepository
	mutex   sync.Mutex
}

// deviceData represents the structure of data stored in the JSON file
type deviceData struct {
	Devices []Device `json:"devices"`
}

// NewFileDeviceRepository creates a new file-based device repository
func NewFileDeviceRepository(dataDir string) (*FileDeviceRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileDeviceRepository{
		dataDir: dataDir,
		store:   NewInMemDeviceRepository(),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

// UpsertDevice creates or refreshes the (user, fingerprint) device and persists it
func (r *FileDeviceRepository) UpsertDevice(ctx context.Context, params UpsertDeviceParams) (UpsertResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result, err := r.store.UpsertDevice(ctx, params)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := r.persist(); err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

func (r *FileDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (Device, error) {
	return r.store.GetDevice(ctx, id)
}

func (r *FileDeviceRepository) GetDeviceByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (Device, error) {
	return r.store.GetDeviceByUserAndDeviceID(ctx, userID, deviceID)
}

func (r *FileDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	return r.store.FindDevicesByUser(ctx, userID)
}

func (r *FileDeviceRepository) CountDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.store.CountDevicesByUser(ctx, userID)
}

// CompareAndSetStatus moves the device from expected to next and persists it
func (r *FileDeviceRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next Status, bumpTokenVersion bool) (Device, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	device, err := r.store.CompareAndSetStatus(ctx, id, expected, next, bumpTokenVersion)
	if err != nil {
		return device, err
	}
	if err := r.persist(); err != nil {
		return Device{}, err
	}
	return device, nil
}

// DeleteDevice removes a device and persists the change
func (r *FileDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.store.DeleteDevice(ctx, id); err != nil {
		return err
	}
	return r.persist()
}

// persist saves the current state, reloading the last saved state on failure
// so memory never runs ahead of the file
func (r *FileDeviceRepository) persist() error {
	if err := r.save(); err != nil {
		if loadErr := r.load(); loadErr != nil {
			return fmt.Errorf("failed to save: %w (reload failed: %v)", err, loadErr)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads device data from file
func (r *FileDeviceRepository) load() error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, devicesFileName))
	if err != nil {
		if os.IsNotExist(err) {
			r.store.restore(nil)
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var devData deviceData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &devData); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	r.store.restore(devData.Devices)
	return nil
}

// save writes device data to file atomically
func (r *FileDeviceRepository) save() error {
	devices := r.store.snapshot()
	sortByRecency(devices)

	jsonData, err := json.MarshalIndent(deviceData{Devices: devices}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, devicesFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, filepath.Join(r.dataDir, devicesFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
