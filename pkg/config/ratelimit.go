package config

import "time"

// RateLimitConfig throttles login attempts per client address
type RateLimitConfig struct {
	LoginEnabled   bool          `env:"LOGIN_RATE_LIMIT_ENABLED" env-default:"true"`
	LoginBurst     int           `env:"LOGIN_RATE_LIMIT_BURST" env-default:"10"`
	LoginPerMinute float64       `env:"LOGIN_RATE_LIMIT_PER_MINUTE" env-default:"10"`
	BucketTTL      time.Duration `env:"LOGIN_RATE_LIMIT_TTL" env-default:"1h"`
}

func (r RateLimitConfig) validate() ValidationErrors {
	if !r.LoginEnabled {
		return nil
	}
	var errs ValidationErrors
	if r.LoginBurst < 1 {
		errs = append(errs, ValidationError{Field: "LOGIN_RATE_LIMIT_BURST", Message: "must be at least 1"})
	}
	if r.LoginPerMinute <= 0 {
		errs = append(errs, ValidationError{Field: "LOGIN_RATE_LIMIT_PER_MINUTE", Message: "must be positive"})
	}
	return errs
}
