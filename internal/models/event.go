package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Event struct {
	ID                uint             `gorm:"primaryKey;autoIncrement"`
	PolymarketEventID int64            `gorm:"uniqueIndex;not null"`
	Slug              *string          `gorm:"type:text;index"`
	Title             *string          `gorm:"type:text"`
	Description       *string          `gorm:"type:text"`
	StartDate         *time.Time       `gorm:"index"`
	EndDate           *time.Time       `gorm:"index"`
	Active            *bool            `gorm:"index"`
	Closed            *bool            ``
	Archived          *bool            ``
	Featured          *bool            ``
	Restricted        *bool            ``
	Liquidity         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Volume            *decimal.Decimal `gorm:"type:numeric(30,10)"`
	RawJSON           datatypes.JSON   `gorm:"type:jsonb"`
	CreatedAt         time.Time        `gorm:"not null"`
	UpdatedAt         time.Time        `gorm:"not null;index"`
}

func (Event) TableName() string {
	return "polymarket_events"
}
