package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-trust/pkg/client"
	"github.com/tendant/simple-trust/pkg/device"
	deviceapi "github.com/tendant/simple-trust/pkg/device/api"
	"github.com/tendant/simple-trust/pkg/errors"
	"github.com/tendant/simple-trust/pkg/sessions"
	userapi "github.com/tendant/simple-trust/pkg/user/api"
)

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	Device   device.DeviceInfo `json:"device"`
}

func (l *LoginRequest) Bind(r *http.Request) error {
	if l.Username == "" || l.Password == "" {
		return errors.InvalidInput("credentials", "username and password are required")
	}
	return nil
}

// LoginResponse is returned after a successful login. The token is also
// set as the access token cookie.
type LoginResponse struct {
	User        userapi.UserResponse     `json:"user"`
	Device      deviceapi.DeviceResponse `json:"device"`
	NewDevice   bool                     `json:"newDevice"`
	AccessToken string                   `json:"accessToken"`
	ExpiresAt   time.Time                `json:"expiresAt"`
}

// MeResponse describes the current session
type MeResponse struct {
	User   userapi.UserResponse     `json:"user"`
	Device deviceapi.DeviceResponse `json:"device"`
}

type Handle struct {
	manager *sessions.Manager
	cookies *sessions.CookieSetter
}

func NewHandle(manager *sessions.Manager, cookies *sessions.CookieSetter) Handle {
	return Handle{manager: manager, cookies: cookies}
}

// Login handles POST /login
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginRequest{}
	if err := render.Bind(r, data); err != nil {
		slog.Debug("Invalid login request", "err", err)
		if _, ok := err.(*errors.Error); !ok {
			err = errors.InvalidInput("body", err.Error())
		}
		errors.Render(w, r, err)
		return
	}

	result, err := h.manager.Login(r.Context(), sessions.LoginParams{
		Username:  data.Username,
		Password:  data.Password,
		Device:    device.DeviceInfoFromRequest(r, data.Device),
		IPAddress: client.ClientIP(r),
	})
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	h.cookies.SetToken(w, result.Token, result.ExpiresAt)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		User:        userapi.ToResponse(result.User),
		Device:      deviceapi.ToResponse(result.Device, result.Device.DeviceID),
		NewDevice:   result.NewDevice,
		AccessToken: result.Token,
		ExpiresAt:   result.ExpiresAt,
	})
}

// Logout handles POST /logout
func (h Handle) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessions.SessionFromContext(r.Context())
	if !ok {
		errors.Render(w, r, errors.TokenInvalid("session required"))
		return
	}
	if err := h.manager.Logout(r.Context(), sess, client.ClientIP(r)); err != nil {
		errors.Render(w, r, err)
		return
	}
	h.cookies.ClearToken(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me
func (h Handle) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessions.SessionFromContext(r.Context())
	if !ok {
		errors.Render(w, r, errors.TokenInvalid("session required"))
		return
	}
	u, d, err := h.manager.CurrentSession(r.Context(), sess)
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, MeResponse{
		User:   userapi.ToResponse(u),
		Device: deviceapi.ToResponse(d, d.DeviceID),
	})
}

// Routes mounts login publicly and the rest behind the session middleware.
// loginMiddlewares only wrap the login endpoint.
func Routes(h Handle, loginMiddlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.With(loginMiddlewares...).Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(h.manager.RequireSession)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
	return r
}
