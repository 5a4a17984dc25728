package gormrepository

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) UpsertTagsTx(ctx context.Context, tx *gorm.DB, items []models.Tag) error {
	if len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polymarket_tag_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"label",
			"slug",
			"force_show",
			"force_hide",
			"is_carousel",
			"published_at",
			"external_created_at",
			"external_updated_at",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error {
	if len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polymarket_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug",
			"title",
			"description",
			"start_date",
			"end_date",
			"active",
			"closed",
			"archived",
			"featured",
			"restricted",
			"liquidity",
			"volume",
			"raw_json",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) FindEventsByNaturalIDsTx(ctx context.Context, tx *gorm.DB, ids []int64) ([]models.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Event
	if err := tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("polymarket_event_id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertEventTagsTx(ctx context.Context, tx *gorm.DB, items []models.EventTag) error {
	if len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "tag_id"}},
		DoNothing: true,
	}), items, 500)
}

func (s *Store) UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error {
	if len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polymarket_market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_id",
			"slug",
			"question",
			"title",
			"category",
			"condition_id",
			"market_type",
			"format_type",
			"active",
			"closed",
			"status",
			"end_date",
			"resolve_time",
			"liquidity",
			"volume",
			"volume24h",
			"outcome_prices",
			"outcomes",
			"clob_token_ids",
			"raw_json",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) SaveIngestionState(ctx context.Context, state *models.IngestionState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"synced_at",
			"event_count",
			"market_count",
			"last_error",
			"updated_at",
		}),
	}).Create(state).Error
}

// SaveIngestionFailure records a failed run under the same key. The update
// list leaves event_count and market_count alone so the last successful
// run's counts survive the failure.
func (s *Store) SaveIngestionFailure(ctx context.Context, state *models.IngestionState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"synced_at",
			"last_error",
			"updated_at",
		}),
	}).Create(state).Error
}

func (s *Store) GetIngestionState(ctx context.Context, key string) (*models.IngestionState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.IngestionState
	err := s.db.WithContext(ctx).First(&state, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyEventFilters(s.db.WithContext(ctx).Model(&models.Event{}), params)
	query = query.Order("start_date desc").Order("polymarket_event_id desc")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Event
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	query := applyEventFilters(s.db.WithContext(ctx).Model(&models.Event{}), params)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyEventFilters(query *gorm.DB, params repository.ListEventsParams) *gorm.DB {
	if params.Search != nil && *params.Search != "" {
		pattern := "%" + *params.Search + "%"
		query = query.Where("(title ILIKE ? OR slug ILIKE ?)", pattern, pattern)
	}
	if params.DayStart != nil && params.DayEnd != nil {
		query = query.Where("start_date BETWEEN ? AND ?", *params.DayStart, *params.DayEnd)
	}
	return query
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyMarketFilters(s.marketQuery(ctx), params)
	query = query.Order("polymarket_markets.updated_at desc")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	query := applyMarketFilters(s.marketQuery(ctx), params)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) marketQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Market{}).
		Joins("LEFT JOIN polymarket_events ON polymarket_events.id = polymarket_markets.event_id")
}

func applyMarketFilters(query *gorm.DB, params repository.ListMarketsParams) *gorm.DB {
	if params.EventID != nil {
		query = query.Where("polymarket_markets.event_id = ?", *params.EventID)
	}
	if params.Search != nil && *params.Search != "" {
		pattern := "%" + *params.Search + "%"
		query = query.Where(
			"(polymarket_markets.question ILIKE ? OR polymarket_markets.title ILIKE ? OR polymarket_markets.slug ILIKE ? OR polymarket_events.title ILIKE ?)",
			pattern, pattern, pattern, pattern,
		)
	}
	if params.DayStart != nil && params.DayEnd != nil {
		query = query.Where(
			"(polymarket_events.start_date BETWEEN ? AND ? OR polymarket_markets.end_date BETWEEN ? AND ?)",
			*params.DayStart, *params.DayEnd, *params.DayStart, *params.DayEnd,
		)
	}
	return query
}

func (s *Store) FindMarketsByNaturalIDs(ctx context.Context, ids []int64) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("polymarket_market_id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListStreamTokenIDs returns token ids of recently updated open markets, for
// the order-book stream subscription.
func (s *Store) ListStreamTokenIDs(ctx context.Context, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var markets []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("active = ?", true).
		Where("(closed = ? OR closed IS NULL)", false).
		Order("updated_at desc").
		Limit(limit).
		Find(&markets).Error; err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, limit)
	for _, market := range markets {
		var tokenIDs []string
		if len(market.ClobTokenIDs) == 0 {
			continue
		}
		if err := json.Unmarshal(market.ClobTokenIDs, &tokenIDs); err != nil {
			continue
		}
		for _, id := range tokenIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *Store) UpsertOrderbookLatest(ctx context.Context, item *models.OrderbookLatest) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"snapshot_ts",
			"bids_json",
			"asks_json",
			"best_bid",
			"best_ask",
			"mid",
			"source",
			"updated_at",
		}),
	}).Create(item).Error
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
