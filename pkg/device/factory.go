package device

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a device repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories; a pool or a transaction
	DB DBTX
	// DataDir is required for file-based repositories
	DataDir string
}

// NewDeviceRepository creates a new device repository based on the persistence type
func NewDeviceRepository(persistenceType string, config RepositoryConfig) (DeviceRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresDeviceRepository(config.DB), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileDeviceRepository(config.DataDir)
	case "memory", "inmem":
		return NewInMemDeviceRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
