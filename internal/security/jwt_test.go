package security

import (
	"testing"
	"time"
)

func newManagerForTest() *SessionTokenManager {
	return NewSessionTokenManager("pos-device-access", "pos-clients", "test-secret")
}

func TestSignAndParseRoundTrip(t *testing.T) {
	m := newManagerForTest()
	expires := time.Now().Add(time.Hour)
	raw, err := m.Sign("dev-1", "sess-1", "loc-1", "ORDER_ENTRY", []string{"pos:access", "pos:order_entry"}, expires)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.DeviceID != "dev-1" || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected binding: %+v", claims)
	}
	if claims.Interface != "ORDER_ENTRY" {
		t.Errorf("unexpected interface %q", claims.Interface)
	}
	if len(claims.Permissions) != 2 {
		t.Errorf("unexpected permissions %v", claims.Permissions)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := newManagerForTest()
	raw, err := m.Sign("dev-1", "sess-1", "loc-1", "ORDER_ENTRY", nil, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(raw); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := newManagerForTest()
	raw, err := m.Sign("dev-1", "sess-1", "loc-1", "ORDER_ENTRY", nil, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other := NewSessionTokenManager("pos-device-access", "pos-clients", "different-secret")
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestParseRejectsWrongIssuerOrAudience(t *testing.T) {
	other := NewSessionTokenManager("some-other-service", "pos-clients", "test-secret")
	raw, err := other.Sign("dev-1", "sess-1", "loc-1", "ORDER_ENTRY", nil, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newManagerForTest().Parse(raw); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}
