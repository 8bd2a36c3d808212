package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quickserve/pos-device-access/internal/domain"
)

// APIClient is the thin HTTP wrapper POS terminals use against the
// device access service.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type AuthenticatePayload struct {
	Fingerprint  string                    `json:"fingerprint"`
	DeviceName   string                    `json:"device_name,omitempty"`
	DeviceType   domain.DeviceType         `json:"device_type,omitempty"`
	Capabilities domain.DeviceCapabilities `json:"capabilities"`
	LocationID   string                    `json:"location_id"`
	Interface    domain.InterfaceType      `json:"interface"`
	UserID       string                    `json:"user_id,omitempty"`
	StationID    *string                   `json:"station_id,omitempty"`
}

type AuthenticateOutcome struct {
	Device           *domain.Device  `json:"device"`
	Session          *domain.Session `json:"session"`
	Token            string          `json:"token"`
	NewRegistration  bool            `json:"new_registration"`
	RequiresApproval bool            `json:"requires_approval"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a structured failure from the service, distinguishable
// from transport errors.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (c *APIClient) Authenticate(ctx context.Context, payload AuthenticatePayload) (*AuthenticateOutcome, error) {
	var outcome AuthenticateOutcome
	status, err := c.do(ctx, http.MethodPost, "/api/v1/devices/authenticate", "", payload, &outcome)
	if err != nil {
		return nil, err
	}
	outcome.RequiresApproval = outcome.RequiresApproval || status == http.StatusAccepted
	return &outcome, nil
}

type ValidateOutcome struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason"`
	Permissions []string `json:"permissions"`
}

func (c *APIClient) ValidateSession(ctx context.Context, token, sessionID string, iface domain.InterfaceType) (*ValidateOutcome, error) {
	var outcome ValidateOutcome
	path := "/api/v1/sessions/" + sessionID + "/validate"
	if _, err := c.do(ctx, http.MethodPost, path, token, map[string]any{"interface": iface}, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *APIClient) Heartbeat(ctx context.Context, token, sessionID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/heartbeat", token, nil, nil)
	return err
}

func (c *APIClient) Terminate(ctx context.Context, token, sessionID, reason string) error {
	path := "/api/v1/sessions/" + sessionID
	_, err := c.do(ctx, http.MethodDelete, path, token, map[string]string{"reason": reason}, nil)
	return err
}

func (c *APIClient) ListSessions(ctx context.Context, token, locationID string) ([]domain.Session, error) {
	var data struct {
		Sessions []domain.Session `json:"sessions"`
	}
	path := "/api/v1/sessions"
	if locationID != "" {
		path += "?location_id=" + locationID
	}
	if _, err := c.do(ctx, http.MethodGet, path, token, nil, &data); err != nil {
		return nil, err
	}
	return data.Sessions, nil
}

func (c *APIClient) do(ctx context.Context, method, path, token string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: "request failed"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return resp.StatusCode, apiErr
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
