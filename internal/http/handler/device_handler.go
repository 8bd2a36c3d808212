package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/security"
	"github.com/quickserve/pos-device-access/internal/service"
)

type DeviceHandler struct {
	devices *service.DeviceService
	tokens  *security.SessionTokenManager
}

func NewDeviceHandler(devices *service.DeviceService, tokens *security.SessionTokenManager) *DeviceHandler {
	return &DeviceHandler{devices: devices, tokens: tokens}
}

type authenticateRequest struct {
	Fingerprint  string                    `json:"fingerprint"`
	DeviceName   string                    `json:"device_name"`
	DeviceType   domain.DeviceType         `json:"device_type"`
	Capabilities domain.DeviceCapabilities `json:"capabilities"`
	LocationID   string                    `json:"location_id"`
	Interface    domain.InterfaceType      `json:"interface"`
	UserID       string                    `json:"user_id"`
	StationID    *string                   `json:"station_id"`
}

type authenticateResponse struct {
	Device           *domain.Device  `json:"device"`
	Session          *domain.Session `json:"session,omitempty"`
	Token            string          `json:"token,omitempty"`
	NewRegistration  bool            `json:"new_registration"`
	RequiresApproval bool            `json:"requires_approval"`
}

// Authenticate is the single entry point for devices: it registers
// unknown fingerprints, authorizes the access tuple, and on allow
// returns a session plus its bearer token.
func (h *DeviceHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var body authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}

	result, err := h.devices.Authenticate(r.Context(), service.AuthenticateRequest{
		Fingerprint:  body.Fingerprint,
		DeviceName:   body.DeviceName,
		DeviceType:   body.DeviceType,
		Capabilities: body.Capabilities,
		LocationID:   body.LocationID,
		Interface:    body.Interface,
		UserID:       body.UserID,
		StationID:    body.StationID,
		IP:           clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, map[string]string{"field": verr.Field})
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "device authentication failed", nil)
		return
	}

	switch result.Decision.Outcome {
	case service.OutcomeNeedsApproval:
		observability.Audit(r, "device.auth.pending", "device_id", result.Device.ID)
		response.JSON(w, r, http.StatusAccepted, authenticateResponse{
			Device:           result.Device,
			NewRegistration:  result.NewRegistration,
			RequiresApproval: true,
		})
		return
	case service.OutcomeDeny:
		observability.Audit(r, "device.auth.denied",
			"device_id", result.Device.ID, "reason", result.Decision.Reason)
		response.Error(w, r, http.StatusForbidden, "ACCESS_DENIED", result.Decision.Reason, nil)
		return
	}

	token, err := h.tokens.Sign(
		result.Device.ID,
		result.Session.ID,
		result.Session.LocationID,
		string(result.Session.Interface),
		result.Session.Permissions,
		result.Session.ExpiresAt,
	)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "token issuance failed", nil)
		return
	}
	observability.Audit(r, "device.auth.allowed",
		"device_id", result.Device.ID, "session_id", result.Session.ID)
	response.JSON(w, r, http.StatusOK, authenticateResponse{
		Device:          result.Device,
		Session:         result.Session,
		Token:           token,
		NewRegistration: result.NewRegistration,
	})
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, device)
}

func (h *DeviceHandler) GetByFingerprint(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetByFingerprint(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		writeDeviceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	status := domain.DeviceStatus(r.URL.Query().Get("status"))
	devices, err := h.devices.List(r.Context(), locationID, status)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "device listing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// clientIP strips the port from RemoteAddr so IP allowlists match and
// stored session addresses are bare IPs. RealIP middleware may have
// already rewritten RemoteAddr to a portless address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeDeviceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrDeviceNotFound) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "device not found", nil)
		return
	}
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "device lookup failed", nil)
}
