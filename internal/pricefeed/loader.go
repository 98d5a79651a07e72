package pricefeed

import (
	"context"
	"time"

	"copytrader/internal/memorystore"

	"go.uber.org/zap"
)

// PriceStorage persists the last traded price per pair.
type PriceStorage interface {
	LoadPrices(ctx context.Context) (map[string]float64, error)
	UpsertPrices(ctx context.Context, prices map[string]float64, at time.Time) error
}

type PriceLoader struct {
	Storage PriceStorage
	Timeout time.Duration
	Logger  *zap.Logger
}

// LoadPrices reads the persisted prices and streams them into ch, so the
// price map is warm before the stream delivers its first update.
func (l *PriceLoader) LoadPrices(ch chan<- memorystore.PriceTick) error {
	defer close(ch) // Ensure downstream consumers can exit cleanly

	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()

	prices, err := l.Storage.LoadPrices(ctx)
	if err != nil {
		l.Logger.Error("failed to load persisted prices", zap.Error(err))
		return err
	}
	l.Logger.Info("loaded persisted prices", zap.Int("count", len(prices)))

	for pair, price := range prices {
		select {
		case ch <- memorystore.PriceTick{Pair: pair, Price: price}:
		case <-ctx.Done():
			l.Logger.Warn("price loading interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return nil
}
