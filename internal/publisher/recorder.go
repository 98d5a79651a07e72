package publisher

import (
	"context"
	"time"

	"copytrader/internal/memorystore"
	"copytrader/pkg/storage/postgres"

	"go.uber.org/zap"
)

// FillJournal stores fills durably.
type FillJournal interface {
	InsertFill(ctx context.Context, record *postgres.FillRecord) error
}

// Publisher sends fill events downstream.
type Publisher interface {
	Publish(ctx context.Context, e FillEvent) error
}

// FillRecorder takes fills from the copy loops and hands them to the journal
// and the publisher on its own goroutine, so a slow sink never delays an order.
type FillRecorder struct {
	journal   FillJournal
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger

	events chan FillEvent
}

// NewFillRecorder builds a recorder; journal and publisher may each be nil.
func NewFillRecorder(journal FillJournal, publisher Publisher, buffer int, timeout time.Duration, logger *zap.Logger) *FillRecorder {
	if buffer < 1 {
		buffer = 1
	}
	return &FillRecorder{
		journal:   journal,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		events:    make(chan FillEvent, buffer),
	}
}

// RecordFill enqueues the fill. It never blocks; when the buffer is full the
// event is dropped and logged.
func (r *FillRecorder) RecordFill(_ context.Context, copierID, leadID string, order memorystore.OrderRecord) {
	e := FillEvent{CopierID: copierID, LeadID: leadID, OrderRecord: order}
	select {
	case r.events <- e:
	default:
		r.logger.Warn("fill buffer full, dropping event",
			zap.String("copier_id", copierID), zap.String("order_id", order.OrderID))
	}
}

// Run delivers queued fills until ctx ends, then drains what is left.
func (r *FillRecorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.events:
			r.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.events:
					r.deliver(e)
				default:
					return nil
				}
			}
		}
	}
}

func (r *FillRecorder) deliver(e FillEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	log := r.logger.With(zap.String("copier_id", e.CopierID), zap.String("order_id", e.OrderID))

	if r.journal != nil {
		record, err := postgres.ToFillRecord(e.CopierID, e.LeadID, e.OrderRecord)
		if err != nil {
			log.Warn("failed to convert fill to fill record", zap.Error(err))
		} else if err := r.journal.InsertFill(ctx, record); err != nil {
			log.Warn("failed to insert fill record", zap.Error(err))
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, e); err != nil {
			log.Warn("failed to publish fill", zap.Error(err))
		}
	}
}
