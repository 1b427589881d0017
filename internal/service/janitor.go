package service

import (
	"context"
	"time"
)

// Sweeper drops expired entries and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// DefaultJanitorInterval is how often expired import jobs are swept
const DefaultJanitorInterval = 30 * time.Second

// StartJanitor runs a background loop that sweeps expired import jobs every
// interval. It blocks until the context is cancelled, so it should be
// launched in a separate goroutine.
func (s *Service) StartJanitor(ctx context.Context, sweeper Sweeper, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Import job janitor started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Import job janitor stopped")
			return
		case <-ticker.C:
			s.sweep(sweeper)
		}
	}
}

func (s *Service) sweep(sweeper Sweeper) int {
	n := sweeper.Sweep()
	s.metrics.ObserveSwept(n)
	if n > 0 {
		s.logger.Debugf("Swept %d expired import jobs", n)
	}
	return n
}
