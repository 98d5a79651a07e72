package copier

import (
	"copytrader/internal/memorystore"

	"github.com/shopspring/decimal"
)

const pnlPlaces = 6

// RealizedPnL is sell notional minus buy notional over the whole log, rounded
// to 6 decimals. It is cash flow: open positions are not marked to market.
func RealizedPnL(orders []memorystore.OrderRecord) float64 {
	total := decimal.Zero
	for _, o := range orders {
		notional := decimal.NewFromFloat(o.Qty).Mul(decimal.NewFromFloat(o.Price))
		switch o.Side {
		case memorystore.SideSell:
			total = total.Add(notional)
		case memorystore.SideBuy:
			total = total.Sub(notional)
		}
	}
	f, _ := total.Round(pnlPlaces).Float64()
	return f
}
