package copier

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMarginType = "Isolated"

// PositionView is a copier position enriched with the last traded price.
type PositionView struct {
	Pair         string  `json:"pair"`
	Side         string  `json:"side"` // LONG or SHORT
	Leverage     float64 `json:"leverage"`
	Qty          float64 `json:"qty"`
	EntryPrice   float64 `json:"entry_price"`
	LTP          float64 `json:"ltp"`
	PositionSize float64 `json:"position_size"`
	Margin       float64 `json:"margin"`
	MarginType   string  `json:"margin_type"`
}

// Positions returns the account's open positions, skipping quantities below
// the noise threshold. Exchange failures yield an empty list.
func (m *Manager) Positions(ctx context.Context, creds Credentials) []PositionView {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	positions, err := m.exchange.Positions(callCtx, creds)
	if err != nil {
		m.logger.Warn("failed to fetch copier positions", zap.String("copier_id", CopierID(creds.Key)), zap.Error(err))
		return []PositionView{}
	}

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		if math.Abs(p.Qty) < m.opts.NoiseThreshold {
			continue
		}

		var ltp float64
		if m.prices != nil {
			ltp, _ = m.prices.LatestPrice(p.Pair)
		}

		side := "LONG"
		if p.Qty < 0 {
			side = "SHORT"
		}
		marginType := p.MarginType
		if marginType == "" {
			marginType = defaultMarginType
		}

		views = append(views, PositionView{
			Pair:         p.Pair,
			Side:         side,
			Leverage:     p.Leverage,
			Qty:          p.Qty,
			EntryPrice:   p.AvgPrice,
			LTP:          ltp,
			PositionSize: round2(math.Abs(p.Qty) * ltp),
			Margin:       round2(p.Margin),
			MarginType:   marginType,
		})
	}
	return views
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
