package postgres

import "time"

// PriceRecord is the last traded price of one pair. One row per pair, overwritten on flush.
type PriceRecord struct {
	Pair      string    `gorm:"primaryKey;type:text"`
	Price     float64   `gorm:"type:numeric;not null"`
	UpdatedAt time.Time `gorm:"not null;index:idx_ltp_updated_at"`
}

// TableName overrides the default table name for GORM.
func (PriceRecord) TableName() string {
	return "ltp_record"
}

// FillRecord is one order placed on behalf of a copier. Rows are append-only.
type FillRecord struct {
	ID uint `gorm:"primaryKey"`

	CopierID string `gorm:"type:varchar(16);not null;index:idx_fill_copier_timestamp"`
	LeadID   string `gorm:"type:text;not null;index:idx_fill_lead"`
	OrderID  string `gorm:"type:text;not null"`

	Pair  string  `gorm:"type:text;not null"`
	Side  string  `gorm:"type:varchar(4);not null"`
	Qty   float64 `gorm:"type:numeric;not null"`
	Price float64 `gorm:"type:numeric;not null"`

	Timestamp time.Time `gorm:"not null;index:idx_fill_copier_timestamp"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (FillRecord) TableName() string {
	return "fill_record"
}
