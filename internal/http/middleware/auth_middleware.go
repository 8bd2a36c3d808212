package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/security"
)

type contextKey string

const ClaimsContextKey contextKey = "session_claims"

// SessionAuth requires a bearer session token. POS clients hold their
// token in memory or the local session cache; there is no cookie path.
func SessionAuth(tokens *security.SessionTokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordTokenValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := tokens.Parse(raw)
			if err != nil {
				observability.RecordTokenValidation(r.Context(), "invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token", nil)
				return
			}
			observability.RecordTokenValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.SessionClaims)
	return c, ok
}
