package memorystore

import "time"

// Side of an executed order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRecord is one order placed for a copier. Never mutated after it is appended.
type OrderRecord struct {
	OrderID   string    `json:"order_id"`  // Exchange order id, "unknown" when the exchange returned none
	Symbol    string    `json:"symbol"`    // Instrument, e.g. "B-BTC_USDT"
	Side      Side      `json:"side"`      // "buy" or "sell"
	Qty       float64   `json:"qty"`       // Rounded quantity actually submitted
	Price     float64   `json:"price"`     // Executed price, 0 when not reported
	Timestamp time.Time `json:"timestamp"` // Time the order was acknowledged (UTC)
}

// PriceTick is a single last-traded-price update from the stream.
type PriceTick struct {
	Pair  string
	Price float64
}
