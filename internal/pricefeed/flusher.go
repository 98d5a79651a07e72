package pricefeed

import (
	"context"
	"time"

	"copytrader/internal/memorystore"

	"go.uber.org/zap"
)

// Flusher periodically writes changed prices to storage.
type Flusher struct {
	Store    *memorystore.MemoryPriceStore
	Storage  PriceStorage
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger

	last map[string]float64
}

// Run flushes every Interval until ctx ends, then flushes once more.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush on shutdown
			finalCtx, cancel := context.WithTimeout(context.Background(), f.Timeout)
			f.flush(finalCtx)
			cancel()
			return nil
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(ctx, f.Timeout)
			f.flush(flushCtx)
			cancel()
		}
	}
}

// flush writes prices that changed since the previous successful flush.
func (f *Flusher) flush(ctx context.Context) int {
	// Diff against the last flushed snapshot
	current := f.Store.Prices()
	changed := make(map[string]float64)
	for pair, price := range current {
		if prev, ok := f.last[pair]; !ok || prev != price {
			changed[pair] = price
		}
	}
	if len(changed) == 0 {
		return 0
	}

	if err := f.Storage.UpsertPrices(ctx, changed, time.Now().UTC()); err != nil {
		f.Logger.Warn("failed to flush prices", zap.Int("count", len(changed)), zap.Error(err))
		return 0
	}
	f.last = current
	f.Logger.Debug("flushed prices", zap.Int("changed", len(changed)), zap.Int("total", len(current)))
	return len(changed)
}
