package config

import (
	"log/slog"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
)

// Config is the full trustd configuration, read from the environment
type Config struct {
	AppConfig   app.AppConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Persistence PersistenceConfig
	Email       EmailConfig
	RateLimit   RateLimitConfig
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every unusable setting at once
func (c Config) Validate() error {
	var errs ValidationErrors
	errs = append(errs, c.JWT.validate()...)
	errs = append(errs, c.Persistence.validate()...)
	errs = append(errs, c.Email.validate()...)
	errs = append(errs, c.RateLimit.validate()...)
	if c.Persistence.Type == PersistencePostgres {
		errs = append(errs, c.Database.validate()...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
