package postgres

import (
	"context"
	"fmt"

	"copytrader/internal/memorystore"
)

func (p *PostgresClient) InsertFill(ctx context.Context, record *FillRecord) error {
	return p.DB.WithContext(ctx).Create(record).Error
}

// ListFills returns the fills of one copier in insertion order.
func (p *PostgresClient) ListFills(ctx context.Context, copierID string) ([]FillRecord, error) {
	var fills []FillRecord
	err := p.DB.WithContext(ctx).
		Where("copier_id = ?", copierID).
		Order("timestamp ASC, id ASC").
		Find(&fills).Error
	if err != nil {
		return nil, err
	}
	return fills, nil
}

// ToFillRecord converts an order log entry into a FillRecord for DB insertion.
func ToFillRecord(copierID, leadID string, o memorystore.OrderRecord) (*FillRecord, error) {
	if o.Side != memorystore.SideBuy && o.Side != memorystore.SideSell {
		return nil, fmt.Errorf("invalid side %q for order %s", o.Side, o.OrderID)
	}
	if o.Timestamp.IsZero() {
		return nil, fmt.Errorf("order %s has no timestamp", o.OrderID)
	}

	return &FillRecord{
		CopierID:  copierID,
		LeadID:    leadID,
		OrderID:   o.OrderID,
		Pair:      o.Symbol,
		Side:      string(o.Side),
		Qty:       o.Qty,
		Price:     o.Price,
		Timestamp: o.Timestamp.UTC(),
	}, nil
}
