package client

import (
	"context"
	"log/slog"
	"time"
)

// HeartbeatLoop keeps a session's activity fresh while the terminal is
// in use. Failures are logged and retried on the next tick; the loop
// never kills the client over a transient network blip.
type HeartbeatLoop struct {
	api      *APIClient
	interval time.Duration
	logger   *slog.Logger
}

func NewHeartbeatLoop(api *APIClient, interval time.Duration, logger *slog.Logger) *HeartbeatLoop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HeartbeatLoop{api: api, interval: interval, logger: logger}
}

// Run beats until the context is canceled.
func (h *HeartbeatLoop) Run(ctx context.Context, token, sessionID string) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.api.Heartbeat(ctx, token, sessionID); err != nil {
				h.logger.WarnContext(ctx, "heartbeat failed",
					"session_id", sessionID, "error", err)
			}
		}
	}
}
