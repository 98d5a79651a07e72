package copier

import (
	"context"

	"copytrader/internal/memorystore"
)

// Credentials is an exchange API key pair.
type Credentials struct {
	Key    string
	Secret string
}

// Position is one open futures position as reported by the exchange.
type Position struct {
	Pair       string
	Qty        float64 // signed: positive long, negative short
	Leverage   float64
	AvgPrice   float64
	Margin     float64
	MarginType string
}

// Fill is the exchange acknowledgement of a market order.
type Fill struct {
	OrderID string
	Price   float64 // 0 when the exchange did not report an executed price
}

// Exchange is everything the engine needs from the exchange. Implementations
// return errors wrapping ErrTransport or ErrData.
type Exchange interface {
	Positions(ctx context.Context, creds Credentials) ([]Position, error)
	WalletBalance(ctx context.Context, creds Credentials) (float64, error)
	PlaceMarketOrder(ctx context.Context, creds Credentials, pair string, side memorystore.Side, qty float64, leverage int) (Fill, error)
	QuantityStep(ctx context.Context, pair string) (float64, error)
}

// PriceFeed exposes the latest traded price per pair.
type PriceFeed interface {
	LatestPrice(pair string) (float64, bool)
	Prices() map[string]float64
}

// FillSink receives every order appended to an order log.
type FillSink interface {
	RecordFill(ctx context.Context, copierID, leadID string, order memorystore.OrderRecord)
}
