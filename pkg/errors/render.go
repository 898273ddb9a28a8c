package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Response is the JSON body written for every failed request
type Response struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Render writes err as a coded JSON response. Errors that are not structured
// are reported as internal errors without leaking their text.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		slog.Error("Unhandled error", "err", err, "path", r.URL.Path)
		e = New(ErrCodeInternal, "internal server error")
	}
	status := e.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", e.Code, "err", e, "path", r.URL.Path)
	}

	render.Status(r, status)
	render.JSON(w, r, Response{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
