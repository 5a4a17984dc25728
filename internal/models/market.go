package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Market struct {
	ID                 uint             `gorm:"primaryKey;autoIncrement"`
	PolymarketMarketID int64            `gorm:"uniqueIndex;not null"`
	EventID            *uint            `gorm:"index"`
	Slug               *string          `gorm:"type:text;index"`
	Question           *string          `gorm:"type:text"`
	Title              *string          `gorm:"type:text"`
	Category           *string          `gorm:"type:text"`
	ConditionID        *string          `gorm:"type:text;index"`
	MarketType         *string          `gorm:"type:text"`
	FormatType         *string          `gorm:"type:text"`
	Active             *bool            `gorm:"index"`
	Closed             *bool            ``
	Status             *string          `gorm:"type:text"`
	EndDate            *time.Time       `gorm:"index"`
	ResolveTime        *time.Time       ``
	Liquidity          *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Volume             *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Volume24h          *decimal.Decimal `gorm:"type:numeric(30,10)"`
	OutcomePrices      datatypes.JSON   `gorm:"type:jsonb"`
	Outcomes           datatypes.JSON   `gorm:"type:jsonb"`
	ClobTokenIDs       datatypes.JSON   `gorm:"type:jsonb"`
	RawJSON            datatypes.JSON   `gorm:"type:jsonb"`
	CreatedAt          time.Time        `gorm:"not null"`
	UpdatedAt          time.Time        `gorm:"not null;index"`
}

func (Market) TableName() string {
	return "polymarket_markets"
}
