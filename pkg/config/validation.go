package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError is a single rejected setting
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected setting of a config
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i := range e {
		b.WriteString("\n  - ")
		b.WriteString(e[i].Error())
	}
	return b.String()
}

// CollectErrors drops the nil results of the Require helpers
func CollectErrors(errs ...*ValidationError) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if err != nil {
			out = append(out, *err)
		}
	}
	return out
}

func RequireNonEmpty(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func RequireMinLength(field, value string, min int) *ValidationError {
	if len(value) < min {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}
	}
	return nil
}

func RequireValidPort(field string, value uint16) *ValidationError {
	if value == 0 {
		return &ValidationError{Field: field, Message: "port must be between 1 and 65535"}
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %v", value)}
	}
	return nil
}

func RequireOneOf(field, value string, allowed ...string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v, got %q", allowed, value)}
}
