package config

import (
	"fmt"

	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds the PostgreSQL connection settings. Only used when
// persistence is postgres.
type DatabaseConfig struct {
	Host     string `env:"TRUST_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"TRUST_PG_PORT" env-default:"5432"`
	Database string `env:"TRUST_PG_DATABASE" env-default:"trust_db"`
	User     string `env:"TRUST_PG_USER" env-default:"trust"`
	Password string `env:"TRUST_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

// String is safe to log
func (d DatabaseConfig) String() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", d.User, d.Host, d.Port, d.Database)
}

func (d DatabaseConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("TRUST_PG_HOST", d.Host),
		RequireValidPort("TRUST_PG_PORT", d.Port),
		RequireNonEmpty("TRUST_PG_DATABASE", d.Database),
		RequireNonEmpty("TRUST_PG_USER", d.User),
	)
}
