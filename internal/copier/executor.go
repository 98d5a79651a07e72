package copier

import (
	"context"
	"fmt"
	"math"
	"time"

	"copytrader/internal/memorystore"

	"go.uber.org/zap"
)

// OrderExecutor places a single rounded market order for a session and
// appends the fill to the session's order log.
type OrderExecutor struct {
	exchange    Exchange
	rounder     *QuantityRounder
	logs        *memorystore.MemoryOrderLogStore
	sink        FillSink
	leverage    int
	callTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewOrderExecutor(exchange Exchange, rounder *QuantityRounder, logs *memorystore.MemoryOrderLogStore,
	leverage int, callTimeout time.Duration, logger *zap.Logger) *OrderExecutor {
	return &OrderExecutor{
		exchange:    exchange,
		rounder:     rounder,
		logs:        logs,
		leverage:    leverage,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// SetFillSink registers a sink notified after every appended order.
func (e *OrderExecutor) SetFillSink(sink FillSink) {
	e.sink = sink
}

// Execute rounds rawQty (signed) to the pair's step and submits |rounded| on
// side. A zero rounded quantity is a no-op and returns (nil, nil).
//
// The submission is detached from ctx cancellation and bounded by the call
// timeout only, so an order that reached the exchange is always recorded.
func (e *OrderExecutor) Execute(ctx context.Context, s *Session, pair string, side memorystore.Side, rawQty float64) (*memorystore.OrderRecord, error) {
	rounded, err := e.rounder.Round(ctx, pair, rawQty)
	if err != nil {
		// the session ended before the step was known; never guess a size
		return nil, fmt.Errorf("round %s: %w", pair, err)
	}
	qty := math.Abs(rounded)
	if qty == 0 {
		e.logger.Debug("rounded quantity is zero, skipping order",
			zap.String("copier_id", s.ID), zap.String("pair", pair), zap.Float64("raw_qty", rawQty))
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
	defer cancel()

	fill, err := e.exchange.PlaceMarketOrder(callCtx, s.Credentials, pair, side, qty, e.leverage)
	if err != nil {
		return nil, fmt.Errorf("place %s %v %s: %w", side, qty, pair, err)
	}

	record := memorystore.OrderRecord{
		OrderID:   fill.OrderID,
		Symbol:    pair,
		Side:      side,
		Qty:       qty,
		Price:     fill.Price,
		Timestamp: e.now().UTC(),
	}
	e.logs.Append(s.ID, record)

	e.logger.Info("order placed",
		zap.String("copier_id", s.ID),
		zap.String("order_id", record.OrderID),
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.Float64("price", record.Price),
	)

	if e.sink != nil {
		e.sink.RecordFill(callCtx, s.ID, s.LeadID, record)
	}
	return &record, nil
}
