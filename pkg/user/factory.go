package user

import "fmt"

// RepositoryConfig contains configuration for creating a user repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
	// DataDir is required for file-based repositories
	DataDir string
}

// NewUserRepository creates a user repository based on the persistence type
func NewUserRepository(persistenceType string, config RepositoryConfig) (UserRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresUserRepository(config.DB), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileUserRepository(config.DataDir)
	case "memory", "inmem":
		return NewInMemoryUserRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
