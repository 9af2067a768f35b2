package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically expires overdue pending reservations.
type Sweeper struct {
	mgr      *Manager
	log      *zap.Logger
	interval time.Duration
	window   time.Duration
	cancel   context.CancelFunc
}

// NewSweeper constructs a Sweeper running CleanupExpired every interval with
// the given expiration window.
func NewSweeper(mgr *Manager, log *zap.Logger, interval, window time.Duration) *Sweeper {
	return &Sweeper{mgr: mgr, log: log, interval: interval, window: window}
}

// Start runs the sweep loop in the background.
func (s *Sweeper) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.loop(ctx)
}

// Stop cancels the sweep loop.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.mgr.CleanupExpired(ctx, s.window); err != nil {
				s.log.Warn("sweep_failed", zap.Error(err))
			}
		}
	}
}
