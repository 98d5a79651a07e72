package pricefeed

import (
	"copytrader/internal/memorystore"
	"copytrader/pkg/coindcx"

	"go.uber.org/zap"
)

// MakeMessageHandler returns a function that handles Socket.IO events by
// parsing current-price updates and storing them in memory.
func MakeMessageHandler(logger *zap.Logger, store *memorystore.MemoryPriceStore) coindcx.EventHandler {
	return func(event string, payload []byte) {
		// Step 1: Filter on event name
		if event != coindcx.CurrentPricesEvent {
			return // join acks and other channels
		}

		// Step 2: Parse pair -> mark price
		prices, err := coindcx.DecodePrices(payload)
		if err != nil {
			logger.Warn("failed to parse price payload", zap.Error(err))
			return
		}

		// Step 3: Store latest prices
		store.SetAll(prices)
	}
}
