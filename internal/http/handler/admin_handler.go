package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/service"
)

// AdminHandler exposes the device lifecycle mutations reserved for
// manager sessions.
type AdminHandler struct {
	devices *service.DeviceService
}

func NewAdminHandler(devices *service.DeviceService) *AdminHandler {
	return &AdminHandler{devices: devices}
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "device.approved", h.devices.Approve)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "device.rejected", h.devices.Reject)
}

func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "device.suspended", h.devices.Suspend)
}

func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "device.reactivated", h.devices.Reactivate)
}

func (h *AdminHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "device.maintenance", h.devices.SetMaintenance)
}

func (h *AdminHandler) mutate(w http.ResponseWriter, r *http.Request, event string, fn func(ctx context.Context, deviceID string) error) {
	deviceID := chi.URLParam(r, "id")
	if err := fn(r.Context(), deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "device not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "device mutation failed", nil)
		return
	}
	observability.Audit(r, event, "device_id", deviceID)
	device, err := h.devices.GetByID(r.Context(), deviceID)
	if err != nil {
		response.JSON(w, r, http.StatusOK, map[string]string{"device_id": deviceID})
		return
	}
	response.JSON(w, r, http.StatusOK, device)
}
