package config

import (
	"net/http"
	"time"

	"github.com/sosodev/duration"
)

// JWTConfig holds session token and cookie settings
type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string `env:"JWT_ISSUER" env-default:"simple-trust"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"simple-trust"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"24h"`
	CookieHttpOnly    bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure      bool   `env:"COOKIE_SECURE" env-default:"true"`
}

// ParseAccessTokenExpiry accepts an ISO8601 duration (PT24H) or a Go
// duration (24h)
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseDuration(j.AccessTokenExpiry)
}

// CookieSameSite is strict for secure cookies and lax otherwise
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (j JWTConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireMinLength("JWT_SECRET", j.Secret, 16),
		RequireNonEmpty("JWT_ISSUER", j.Issuer),
		RequireNonEmpty("JWT_AUDIENCE", j.Audience),
	)
	expiry, err := j.ParseAccessTokenExpiry()
	if err != nil {
		return append(errs, ValidationError{Field: "ACCESS_TOKEN_EXPIRY", Message: err.Error()})
	}
	if e := RequirePositiveDuration("ACCESS_TOKEN_EXPIRY", expiry); e != nil {
		errs = append(errs, *e)
	}
	return errs
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := duration.Parse(s); err == nil {
		return d.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
