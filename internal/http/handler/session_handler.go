package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.SessionFilter{
		DeviceID:   q.Get("device_id"),
		UserID:     q.Get("user_id"),
		LocationID: q.Get("location_id"),
		Status:     domain.SessionStatus(q.Get("status")),
	}
	sessions, err := h.sessions.List(r.Context(), filter)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "session listing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "session lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, session)
}

// Heartbeat is idempotent: an unknown or already-terminated session
// still answers 204 so crashed clients can retry blindly.
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Heartbeat(r.Context(), chi.URLParam(r, "session_id")); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "heartbeat failed", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	reason := "terminated"
	if r.Body != nil && r.Body != http.NoBody {
		var body terminateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Reason != "" {
			reason = body.Reason
		}
	}
	sessionID := chi.URLParam(r, "session_id")
	if err := h.sessions.Terminate(r.Context(), sessionID, reason); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "termination failed", nil)
		return
	}
	observability.Audit(r, "session.terminated", "session_id", sessionID, "reason", reason)
	w.WriteHeader(http.StatusNoContent)
}

type validateRequest struct {
	Interface domain.InterfaceType `json:"interface"`
}

type validateResponse struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Validate re-runs the authorization check for a live session. Clients
// call this on reconnect instead of re-authenticating from scratch.
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Interface.Valid() {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "a valid interface is required", nil)
		return
	}
	decision, err := h.sessions.ValidateAccess(r.Context(), chi.URLParam(r, "session_id"), body.Interface)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "validation failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, validateResponse{
		Allowed:     decision.Allowed(),
		Reason:      decision.Reason,
		Permissions: decision.Permissions,
	})
}
