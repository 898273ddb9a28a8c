package client

import (
	"log/slog"
	"net/http"

	"github.com/tendant/simple-trust/pkg/errors"
)

// RequireAdmin allows only administrators through. Must be used after the
// session authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetAuthUser(r)
		if !ok {
			slog.Debug("Unauthenticated request to admin resource")
			errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
			return
		}
		if !user.Admin {
			slog.Warn("User lacks admin privileges", "user", user)
			errors.Render(w, r, errors.Forbidden("admin privileges required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
