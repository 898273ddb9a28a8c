package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AuthUser is the principal of a validated session
type AuthUser struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Admin    bool      `json:"admin,omitempty"`
	// DeviceID is the fingerprint the session is bound to
	DeviceID string `json:"device_id"`
	// DeviceRecordID is the registry id of that device
	DeviceRecordID uuid.UUID `json:"device_record_id"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserID.String()),
		slog.String("device", i.DeviceID),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "trust context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// LoadFromMap decodes a claims map into c through JSON
func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// WithAuthUser stores the session principal in ctx
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// GetAuthUser returns the session principal stored by the session middleware
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	return AuthUserFromContext(r.Context())
}

// AuthUserFromContext returns the session principal stored in ctx
func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	user, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return user, ok && user != nil
}

// Verifier looks for the token in the Authorization header and then the
// access token cookie
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClientIP returns the host part of the remote address. Deployments behind
// a proxy mount middleware.RealIP so RemoteAddr is already rewritten.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
