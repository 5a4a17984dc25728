package models

import "time"

type Tag struct {
	ID                uint       `gorm:"primaryKey;autoIncrement"`
	PolymarketTagID   int64      `gorm:"uniqueIndex;not null"`
	Label             *string    `gorm:"type:text"`
	Slug              *string    `gorm:"type:text;index"`
	ForceShow         *bool      ``
	ForceHide         *bool      ``
	IsCarousel        *bool      ``
	PublishedAt       *time.Time ``
	ExternalCreatedAt *time.Time ``
	ExternalUpdatedAt *time.Time ``
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

func (Tag) TableName() string {
	return "polymarket_tags"
}
