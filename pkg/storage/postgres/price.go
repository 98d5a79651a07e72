package postgres

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// UpsertPrices writes every pair in prices, replacing the stored price.
func (p *PostgresClient) UpsertPrices(ctx context.Context, prices map[string]float64, at time.Time) error {
	if len(prices) == 0 {
		return nil
	}

	records := make([]PriceRecord, 0, len(prices))
	for pair, price := range prices {
		records = append(records, PriceRecord{Pair: pair, Price: price, UpdatedAt: at})
	}

	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "updated_at"}),
	}).CreateInBatches(records, 500).Error
}

// LoadPrices returns every stored pair price.
func (p *PostgresClient) LoadPrices(ctx context.Context) (map[string]float64, error) {
	var records []PriceRecord
	if err := p.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(records))
	for _, r := range records {
		prices[r.Pair] = r.Price
	}
	return prices, nil
}
