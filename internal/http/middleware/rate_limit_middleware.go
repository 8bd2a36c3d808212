package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quickserve/pos-device-access/internal/http/response"
	"github.com/quickserve/pos-device-access/internal/observability"
)

type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	keyFunc func(r *http.Request) string
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWith(NewLocalFixedWindowLimiter(), limit, window, FailClosed, "api", nil)
}

func NewRateLimiterWith(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string, keyFunc func(r *http.Request) string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  RateLimitPolicy{Limit: limit, Window: window},
		mode:    mode,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			decision, err := rl.limiter.Allow(r.Context(), key, rl.policy)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error")
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope, "error", err)
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", retryAfterHeader(rl.policy.Window))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			writeRateLimitHeaders(w.Header(), rl.policy.Limit, decision)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// FingerprintOrIPKey buckets device authentication traffic per
// fingerprint when one is present, so one chatty kiosk cannot starve
// the rest of a NATed store network.
func FingerprintOrIPKey(r *http.Request) string {
	if fp := r.Header.Get("X-Device-Fingerprint"); fp != "" {
		return "fp:" + fp
	}
	return clientIPKey(r)
}

type localFixedWindowLimiter struct {
	mu      sync.Mutex
	store   map[string]*windowState
	cleanup time.Time
}

type windowState struct {
	windowStart time.Time
	count       int
}

func NewLocalFixedWindowLimiter() Limiter {
	return &localFixedWindowLimiter{
		store:   make(map[string]*windowState),
		cleanup: time.Now().Add(time.Minute),
	}
}

func (l *localFixedWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, s := range l.store {
			if now.Sub(s.windowStart) > 2*policy.Window {
				delete(l.store, k)
			}
		}
		l.cleanup = now.Add(policy.Window)
	}

	state, ok := l.store[key]
	if !ok || now.Sub(state.windowStart) >= policy.Window {
		state = &windowState{windowStart: now}
		l.store[key] = state
	}
	resetAt := state.windowStart.Add(policy.Window)
	if state.count >= policy.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}
	state.count++
	return Decision{
		Allowed:   true,
		Remaining: policy.Limit - state.count,
		ResetAt:   resetAt,
	}, nil
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, decision Decision) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	remaining := decision.Remaining
	if remaining < 0 {
		remaining = 0
	}
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	resetAt := decision.ResetAt
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}
