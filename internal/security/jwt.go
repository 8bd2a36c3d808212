package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims binds a token to one device, one session and one
// interface. Tokens are bearer proof of an issued session, not a
// substitute for the use-time authorization re-check.
type SessionClaims struct {
	DeviceID    string   `json:"device_id"`
	SessionID   string   `json:"session_id"`
	LocationID  string   `json:"location_id"`
	Interface   string   `json:"interface"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

type SessionTokenManager struct {
	issuer   string
	audience string
	secret   []byte
}

func NewSessionTokenManager(issuer, audience, secret string) *SessionTokenManager {
	return &SessionTokenManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
	}
}

// Sign issues a token whose expiry mirrors the session's absolute
// expiry, so a token never outlives its session.
func (m *SessionTokenManager) Sign(deviceID, sessionID, locationID, iface string, permissions []string, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		DeviceID:    deviceID,
		SessionID:   sessionID,
		LocationID:  locationID,
		Interface:   iface,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   deviceID,
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *SessionTokenManager) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.SessionID == "" || claims.DeviceID == "" {
		return nil, errors.New("token missing session binding")
	}
	return claims, nil
}
