package service

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

// stubRepo is an in-memory repository.CatalogRepository for service tests.
// Events get a surrogate id on first insert, matching the store behavior.
type stubRepo struct {
	mu sync.Mutex

	nextEventID uint
	tags        map[int64]models.Tag
	events      map[int64]models.Event
	eventTags   map[[2]int64]struct{}
	markets     map[int64]models.Market
	states      map[string]models.IngestionState
	books       map[string]models.OrderbookLatest
	streamIDs   []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		tags:      map[int64]models.Tag{},
		events:    map[int64]models.Event{},
		eventTags: map[[2]int64]struct{}{},
		markets:   map[int64]models.Market{},
		states:    map[string]models.IngestionState{},
		books:     map[string]models.OrderbookLatest{},
	}
}

var _ repository.CatalogRepository = (*stubRepo)(nil)

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) UpsertTagsTx(ctx context.Context, tx *gorm.DB, items []models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.tags[item.PolymarketTagID] = item
	}
	return nil
}

func (s *stubRepo) UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if existing, ok := s.events[item.PolymarketEventID]; ok {
			item.ID = existing.ID
		} else {
			s.nextEventID++
			item.ID = s.nextEventID
		}
		s.events[item.PolymarketEventID] = item
	}
	return nil
}

func (s *stubRepo) FindEventsByNaturalIDsTx(ctx context.Context, tx *gorm.DB, ids []int64) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := s.events[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertEventTagsTx(ctx context.Context, tx *gorm.DB, items []models.EventTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.eventTags[[2]int64{int64(item.EventID), item.TagID}] = struct{}{}
	}
	return nil
}

func (s *stubRepo) UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.markets[item.PolymarketMarketID] = item
	}
	return nil
}

func (s *stubRepo) SaveIngestionState(ctx context.Context, state *models.IngestionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Key] = *state
	return nil
}

func (s *stubRepo) SaveIngestionFailure(ctx context.Context, state *models.IngestionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.states[state.Key]; ok {
		prev.SyncedAt = state.SyncedAt
		prev.LastError = state.LastError
		s.states[state.Key] = prev
		return nil
	}
	s.states[state.Key] = *state
	return nil
}

func (s *stubRepo) GetIngestionState(ctx context.Context, key string) (*models.IngestionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[key]; ok {
		return &state, nil
	}
	return nil, nil
}

func (s *stubRepo) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out, nil
}

func (s *stubRepo) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)), nil
}

func (s *stubRepo) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s *stubRepo) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

func (s *stubRepo) FindMarketsByNaturalIDs(ctx context.Context, ids []int64) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Market, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.markets[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubRepo) ListStreamTokenIDs(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.streamIDs...), nil
}

func (s *stubRepo) UpsertOrderbookLatest(ctx context.Context, item *models.OrderbookLatest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[item.TokenID] = *item
	return nil
}
