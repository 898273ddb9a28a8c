package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-trust/pkg/client"
	"github.com/tendant/simple-trust/pkg/errors"
	"github.com/tendant/simple-trust/pkg/user"
)

// UserResponse is the client view of an account
type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	Admin      bool       `json:"admin"`
	DndEnabled bool       `json:"dndEnabled"`
	DndUntil   *time.Time `json:"dndUntil,omitempty"`
}

// ToResponse strips credential and version fields
func ToResponse(u user.User) UserResponse {
	var resp UserResponse
	copier.Copy(&resp, &u)
	return resp
}

// PreferencesRequest is the body of PUT /preferences
type PreferencesRequest struct {
	DndEnabled bool       `json:"dndEnabled"`
	DndUntil   *time.Time `json:"dndUntil,omitempty"`
}

func (p *PreferencesRequest) Bind(r *http.Request) error {
	return nil
}

// RevokeSessionsResponse reports the new account token version
type RevokeSessionsResponse struct {
	TokenVersion int `json:"tokenVersion"`
}

type Handle struct {
	userService *user.UserService
}

func NewHandle(userService *user.UserService) Handle {
	return Handle{userService: userService}
}

// UpdatePreferences handles PUT /preferences for the caller
func (h Handle) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	data := &PreferencesRequest{}
	if err := render.Bind(r, data); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		errors.Render(w, r, errors.InvalidInput("body", err.Error()))
		return
	}

	u, err := h.userService.UpdatePreferences(r.Context(), authUser.UserID, user.Preferences{
		DndEnabled: data.DndEnabled,
		DndUntil:   data.DndUntil,
	})
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, ToResponse(u))
}

// ForceTrust handles POST /users/{id}/force-trust
func (h Handle) ForceTrust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("id", "must be a UUID"))
		return
	}
	if err := h.userService.ForceTrustNextDevice(r.Context(), id); err != nil {
		errors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeSessions handles POST /users/{id}/revoke-sessions
func (h Handle) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("id", "must be a UUID"))
		return
	}
	version, err := h.userService.RevokeSessions(r.Context(), id)
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RevokeSessionsResponse{TokenVersion: version})
}

// MeRoutes are the caller's own account routes
func MeRoutes(h Handle) http.Handler {
	r := chi.NewRouter()
	r.Put("/preferences", h.UpdatePreferences)
	return r
}

// AdminRoutes are restricted to administrators
func AdminRoutes(h Handle) http.Handler {
	r := chi.NewRouter()
	r.Use(client.RequireAdmin)
	r.Post("/users/{id}/force-trust", h.ForceTrust)
	r.Post("/users/{id}/revoke-sessions", h.RevokeSessions)
	return r
}
