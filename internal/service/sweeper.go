package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickserve/pos-device-access/internal/repository"
)

// ExpirySweeper periodically fixes up the cached status of sessions
// whose absolute expiry has passed. Authorization never depends on the
// sweep having run; callers check the timestamp.
type ExpirySweeper struct {
	sessions repository.SessionRepository
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewExpirySweeper(sessions repository.SessionRepository, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirySweeper{sessions: sessions, interval: interval, logger: logger, now: time.Now}
}

// Run sweeps until the context is canceled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	count, err := s.sessions.MarkExpiredBefore(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "session expiry sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "session expiry sweep", "expired", count)
	}
}
