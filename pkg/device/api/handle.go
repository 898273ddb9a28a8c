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
	"github.com/tendant/simple-trust/pkg/device"
	"github.com/tendant/simple-trust/pkg/errors"
)

// DeviceHandler handles HTTP requests for device management
type DeviceHandler struct {
	deviceService *device.DeviceService
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *device.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

// DeviceResponse is the client view of a device. The token version stays internal.
type DeviceResponse struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	Status     string    `json:"status"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	IPAddress  string    `json:"ipAddress"`
	Current    bool      `json:"current"`
}

// ListDevicesResponse represents the response body for listing devices
type ListDevicesResponse struct {
	Devices []DeviceResponse `json:"devices"`
}

// UpdateStatusRequest represents the request body for changing a device status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ToResponse converts a device for the client, marking the caller's own device
func ToResponse(d device.Device, callerDeviceID string) DeviceResponse {
	var resp DeviceResponse
	copier.Copy(&resp, &d)
	resp.Status = string(d.Status)
	resp.Current = d.DeviceID == callerDeviceID
	return resp
}

// ListDevices handles listing the caller's devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	devices, err := h.deviceService.ListDevices(r.Context(), authUser.UserID)
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	resp := ListDevicesResponse{Devices: make([]DeviceResponse, 0, len(devices))}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, ToResponse(d, authUser.DeviceID))
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// UpdateStatus handles trusting, resetting or revoking one of the caller's devices
func (h *DeviceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("id", "must be a UUID"))
		return
	}

	var req UpdateStatusRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Debug("Failed to decode request body", "err", err)
		errors.Render(w, r, errors.InvalidInput("body", err.Error()))
		return
	}
	status, err := device.ParseStatus(req.Status)
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("status", err.Error()))
		return
	}

	updated, err := h.deviceService.UpdateStatus(r.Context(), device.UpdateStatusParams{
		UserID:         authUser.UserID,
		DeviceRecordID: id,
		Status:         status,
		IPAddress:      client.ClientIP(r),
	})
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ToResponse(updated, authUser.DeviceID))
}

// DeleteDevice handles removing one of the caller's other devices
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		errors.Render(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("id", "must be a UUID"))
		return
	}

	err = h.deviceService.DeleteDevice(r.Context(), device.DeleteDeviceParams{
		UserID:         authUser.UserID,
		DeviceRecordID: id,
		CallerDeviceID: authUser.DeviceID,
	})
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Handler returns a http.Handler for the device API. Callers mount it
// behind the session authenticator.
func Handler(h *DeviceHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListDevices)
	r.Patch("/{id}", h.UpdateStatus)
	r.Delete("/{id}", h.DeleteDevice)

	return r
}
