package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"pmcatalog/internal/models"
)

// ListEventsParams filters the event listing. Search is a case-insensitive
// substring match on title and slug; DayStart/DayEnd bound the start date.
type ListEventsParams struct {
	Search   *string
	DayStart *time.Time
	DayEnd   *time.Time
	Limit    int
	Offset   int
}

// ListMarketsParams filters the market listing. Search also matches the parent
// event title; the day window matches either the event start date or the
// market end date.
type ListMarketsParams struct {
	Search   *string
	DayStart *time.Time
	DayEnd   *time.Time
	EventID  *uint
	Limit    int
	Offset   int
}

type CatalogRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	UpsertTagsTx(ctx context.Context, tx *gorm.DB, items []models.Tag) error
	UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error
	FindEventsByNaturalIDsTx(ctx context.Context, tx *gorm.DB, ids []int64) ([]models.Event, error)
	InsertEventTagsTx(ctx context.Context, tx *gorm.DB, items []models.EventTag) error
	UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error

	SaveIngestionState(ctx context.Context, state *models.IngestionState) error
	SaveIngestionFailure(ctx context.Context, state *models.IngestionState) error
	GetIngestionState(ctx context.Context, key string) (*models.IngestionState, error)

	ListEvents(ctx context.Context, params ListEventsParams) ([]models.Event, error)
	CountEvents(ctx context.Context, params ListEventsParams) (int64, error)
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	FindMarketsByNaturalIDs(ctx context.Context, ids []int64) ([]models.Market, error)

	ListStreamTokenIDs(ctx context.Context, limit int) ([]string, error)
	UpsertOrderbookLatest(ctx context.Context, item *models.OrderbookLatest) error
}
