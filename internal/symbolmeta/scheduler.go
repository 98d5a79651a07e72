package symbolmeta

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StepCache is the per-pair quantity step cache held by the rounder.
type StepCache interface {
	Reset() int
}

// MidnightScheduler runs Task at every UTC midnight.
type MidnightScheduler struct {
	Task func()
	now  func() time.Time
}

// NextMidnight returns the first UTC midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Run blocks until ctx ends, calling Task at each UTC midnight.
func (m *MidnightScheduler) Run(ctx context.Context) error {
	now := m.now
	if now == nil {
		now = time.Now
	}

	for {
		// Wait until next UTC midnight
		t := now()
		timer := time.NewTimer(NextMidnight(t).Sub(t))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			m.Task()
		}
	}
}

// StepCacheReset returns a task that clears cache so step sizes are refetched.
func StepCacheReset(cache StepCache, logger *zap.Logger) func() {
	return func() {
		n := cache.Reset()
		logger.Info("quantity step cache reset", zap.Int("dropped", n))
	}
}
