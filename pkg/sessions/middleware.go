package sessions

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-trust/pkg/client"
	"github.com/tendant/simple-trust/pkg/errors"
)

type contextKey struct {
	name string
}

var sessionKey = &contextKey{"Session"}

// WithSession stores a validated session and its principal in ctx
func WithSession(ctx context.Context, sess Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sess)
	return client.WithAuthUser(ctx, &client.AuthUser{
		UserID:         sess.User.ID,
		Username:       sess.User.Username,
		Admin:          sess.User.Admin,
		DeviceID:       sess.Device.DeviceID,
		DeviceRecordID: sess.Device.ID,
	})
}

// SessionFromContext returns the session stored by Authenticator
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}

// Authenticator runs after jwtauth.Verify. It checks the token versions
// against storage and rejects the request with TOKEN_INVALID on mismatch.
func (m *Manager) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			errors.Render(w, r, errors.TokenInvalid("missing or invalid session token"))
			return
		}

		var b Binding
		if err := client.LoadFromMap(claims, &b); err != nil {
			errors.Render(w, r, errors.TokenInvalid("malformed session claims"))
			return
		}

		sess, err := m.ValidateClaims(r.Context(), b)
		if err != nil {
			errors.Render(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireSession verifies the token signature and expiry, then the versions
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return client.Verifier(m.codec.JWTAuth())(m.Authenticator(next))
}
