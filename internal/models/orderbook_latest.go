package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderbookLatest struct {
	TokenID    string           `gorm:"primaryKey;type:text"`
	SnapshotTS time.Time        `gorm:"not null"`
	BidsJSON   datatypes.JSON   `gorm:"type:jsonb;not null"`
	AsksJSON   datatypes.JSON   `gorm:"type:jsonb;not null"`
	BestBid    *decimal.Decimal `gorm:"type:numeric(20,10)"`
	BestAsk    *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Mid        *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Source     *string          `gorm:"type:text"`
	UpdatedAt  time.Time        `gorm:"not null"`
}

func (OrderbookLatest) TableName() string {
	return "clob_orderbook_latest"
}
