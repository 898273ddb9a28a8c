package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-trust/pkg/audit"
	"github.com/tendant/simple-trust/pkg/client"
	"github.com/tendant/simple-trust/pkg/errors"
)

// Handle serves the caller's own audit trail
type Handle struct {
	logger *audit.Logger
}

func NewHandle(logger *audit.Logger) Handle {
	return Handle{logger: logger}
}

// ListEventsResponse is the body of GET /events
type ListEventsResponse struct {
	Events []audit.AuditEvent `json:"events"`
}

// ListEvents handles GET /events?event=&limit=
func (h Handle) ListEvents(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	filter := audit.Filter{Event: audit.EventKind(r.URL.Query().Get("event"))}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			errors.Render(w, r, errors.InvalidInput("limit", "must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.logger.ListEvents(r.Context(), authUser.UserID, filter)
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	if events == nil {
		events = []audit.AuditEvent{}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListEventsResponse{Events: events})
}

func Routes(h Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/events", h.ListEvents)
	return r
}
