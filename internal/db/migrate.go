package db

import (
	"pmcatalog/internal/models"
)

// AutoMigrate creates or extends the catalog tables. Column drops are
// never applied automatically; destructive changes go through manual
// migrations.
func (d *DB) AutoMigrate() error {
	if d == nil || d.Gorm == nil {
		return errNotConnected
	}

	return d.Gorm.AutoMigrate(
		&models.Tag{},
		&models.Event{},
		&models.EventTag{},
		&models.Market{},
		&models.IngestionState{},
		&models.OrderbookLatest{},
	)
}
