package models

import "time"

// IngestionState records the outcome of the most recent pipeline run per key.
// One row per logical pipeline; upserted on every run, including empty ones,
// so consumers can tell "ran and produced nothing" from "never ran".
type IngestionState struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Key         string    `gorm:"type:text;uniqueIndex;not null"`
	SyncedAt    time.Time `gorm:"not null"`
	EventCount  int       `gorm:"not null;default:0"`
	MarketCount int       `gorm:"not null;default:0"`
	LastError   *string   `gorm:"type:text"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (IngestionState) TableName() string {
	return "polymarket_ingestion_state"
}
