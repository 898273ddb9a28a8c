package config

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, PersistenceMemory, cfg.Persistence.Type)
	assert.Equal(t, "trust_db", cfg.Database.Database)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.True(t, cfg.RateLimit.LoginEnabled)
	assert.Equal(t, time.Hour, cfg.RateLimit.BucketTTL)

	expiry, err := cfg.JWT.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, expiry)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TRUST_PERSISTENCE", "postgres")
	t.Setenv("TRUST_PG_HOST", "db.internal")
	t.Setenv("TRUST_PG_PORT", "6543")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "PT2H")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	db := cfg.Database.ToDbConfig()
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, uint16(6543), db.Port)
	assert.NotContains(t, cfg.Database.String(), cfg.Database.Password)

	expiry, err := cfg.JWT.ParseAccessTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, expiry)
	assert.Equal(t, http.SameSiteLaxMode, cfg.JWT.CookieSameSite())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JWT:         JWTConfig{Secret: "0123456789abcdef", Issuer: "i", Audience: "a", AccessTokenExpiry: "1h"},
			Persistence: PersistenceConfig{Type: PersistenceMemory},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"short secret", func(c *Config) { c.JWT.Secret = "short" }, "JWT_SECRET"},
		{"bad expiry", func(c *Config) { c.JWT.AccessTokenExpiry = "soon" }, "ACCESS_TOKEN_EXPIRY"},
		{"negative expiry", func(c *Config) { c.JWT.AccessTokenExpiry = "-5m" }, "ACCESS_TOKEN_EXPIRY"},
		{"unknown persistence", func(c *Config) { c.Persistence.Type = "redis" }, "TRUST_PERSISTENCE"},
		{"file without dir", func(c *Config) { c.Persistence = PersistenceConfig{Type: PersistenceFile} }, "TRUST_DATA_DIR"},
		{"postgres without host", func(c *Config) {
			c.Persistence.Type = PersistencePostgres
			c.Database = DatabaseConfig{Port: 5432, Database: "d", User: "u"}
		}, "TRUST_PG_HOST"},
		{"zero burst", func(c *Config) { c.RateLimit = RateLimitConfig{LoginEnabled: true, LoginPerMinute: 1} }, "LOGIN_RATE_LIMIT_BURST"},
		{"email without from", func(c *Config) { c.Email = EmailConfig{Enabled: true, Host: "smtp", Port: 25} }, "EMAIL_FROM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}
