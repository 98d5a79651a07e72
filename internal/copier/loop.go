package copier

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// run is the per-session sync loop: place opening orders for the lead's
// current book, then every poll interval mirror the change since the last poll.
func (m *Manager) run(ctx context.Context, s *Session, lead LeadTrader) {
	defer m.wg.Done()
	defer close(s.done)
	defer s.state.Store(int32(StateStopped))

	log := m.logger.With(zap.String("copier_id", s.ID), zap.String("lead_id", lead.ID))

	prev, ok := m.initialize(ctx, s, lead, log)
	if !ok {
		log.Info("copy loop exited before initial sync")
		return
	}

	for {
		if !sleep(ctx, m.opts.PollInterval) {
			log.Info("copy loop exited")
			return
		}

		curr, err := m.fetchSnapshot(ctx, lead)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("failed to fetch lead positions", zap.Error(err))
			}
			continue
		}

		m.apply(ctx, s, Diff(prev, curr, m.opts.NoiseThreshold), log)
		prev = curr
	}
}

// initialize retries the first lead snapshot until it succeeds, then opens
// the copier's book. It reports false when the session was stopped first.
func (m *Manager) initialize(ctx context.Context, s *Session, lead LeadTrader, log *zap.Logger) (Snapshot, bool) {
	for {
		curr, err := m.fetchSnapshot(ctx, lead)
		if err == nil {
			m.apply(ctx, s, Diff(nil, curr, m.opts.NoiseThreshold), log)
			if !s.markRunning() {
				return nil, false
			}
			log.Info("initial sync done", zap.Int("pairs", len(curr)))
			return curr, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		log.Warn("initial lead snapshot failed, retrying", zap.Error(err))
		if !sleep(ctx, m.opts.PollInterval) {
			return nil, false
		}
	}
}

func (m *Manager) fetchSnapshot(ctx context.Context, lead LeadTrader) (Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	positions, err := m.exchange.Positions(callCtx, lead.Credentials)
	if err != nil {
		return nil, err
	}
	return SnapshotFromPositions(positions), nil
}

// apply places one order per delta, sequentially. Failed orders are logged
// and dropped.
func (m *Manager) apply(ctx context.Context, s *Session, deltas []Delta, log *zap.Logger) {
	for _, d := range deltas {
		if ctx.Err() != nil {
			return
		}
		side := OrderSide(d.Qty, s.Reverse)
		if _, err := m.executor.Execute(ctx, s, d.Pair, side, d.Qty*s.Scaling); err != nil {
			log.Warn("order dropped", zap.String("pair", d.Pair), zap.Float64("delta", d.Qty), zap.Error(err))
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
