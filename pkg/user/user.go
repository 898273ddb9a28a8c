package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// User is an account. TokenVersion only ever grows; bumping it ends every
// session of the account.
type User struct {
	ID                   uuid.UUID  `json:"id"`
	Username             string     `json:"username"`
	Email                string     `json:"email,omitempty"`
	PasswordHash         string     `json:"password_hash"`
	Disabled             bool       `json:"disabled"`
	Admin                bool       `json:"admin"`
	TokenVersion         int        `json:"token_version"`
	ForceTrustNextDevice bool       `json:"force_trust_next_device"`
	DndEnabled           bool       `json:"dnd_enabled"`
	DndUntil             *time.Time `json:"dnd_until,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CreateUserParams contains parameters for creating a new user
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Admin        bool
	Disabled     bool
}

// Preferences are the do-not-disturb settings. They do not affect trust.
type Preferences struct {
	DndEnabled bool       `json:"dndEnabled"`
	DndUntil   *time.Time `json:"dndUntil,omitempty"`
}
