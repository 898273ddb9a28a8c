package sessions

import (
	"net/http"
	"time"

	"github.com/tendant/simple-trust/pkg/client"
)

// CookieSetter writes the access token cookie
type CookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// NewCookieSetter creates a cookie setter for the access token
func NewCookieSetter(httpOnly, secure bool) *CookieSetter {
	return &CookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetToken sets the access token cookie
func (c *CookieSetter) SetToken(w http.ResponseWriter, token string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     client.ACCESS_TOKEN_NAME,
		Path:     c.Path,
		Value:    token,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// ClearToken expires the access token cookie
func (c *CookieSetter) ClearToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     client.ACCESS_TOKEN_NAME,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
