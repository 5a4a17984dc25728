package gormrepository

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Tag{},
		&models.Event{},
		&models.EventTag{},
		&models.Market{},
		&models.IngestionState{},
		&models.OrderbookLatest{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func strp(s string) *string { return &s }

func TestUpsertEvents_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []models.Event{
		{PolymarketEventID: 701, Title: strp("Celtics vs Lakers")},
		{PolymarketEventID: 702, Title: strp("Warriors vs Suns")},
	}
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertEventsTx(ctx, tx, seed)
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	var firstID uint
	err = store.InTx(ctx, func(tx *gorm.DB) error {
		stored, err := store.FindEventsByNaturalIDsTx(ctx, tx, []int64{701})
		if err != nil {
			return err
		}
		firstID = stored[0].ID
		return nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	update := []models.Event{
		{PolymarketEventID: 701, Title: strp("Celtics vs Lakers (updated)")},
	}
	err = store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertEventsTx(ctx, tx, update)
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	total, err := store.CountEvents(ctx, repository.ListEventsParams{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("total=%d want 2", total)
	}
	err = store.InTx(ctx, func(tx *gorm.DB) error {
		stored, err := store.FindEventsByNaturalIDsTx(ctx, tx, []int64{701})
		if err != nil {
			return err
		}
		if stored[0].ID != firstID {
			t.Errorf("surrogate id changed: %d -> %d", firstID, stored[0].ID)
		}
		if stored[0].Title == nil || *stored[0].Title != "Celtics vs Lakers (updated)" {
			t.Errorf("title=%v", stored[0].Title)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestInsertEventTags_IgnoresDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	links := []models.EventTag{{EventID: 1, TagID: 10}, {EventID: 1, TagID: 11}}
	for i := 0; i < 2; i++ {
		err := store.InTx(ctx, func(tx *gorm.DB) error {
			return store.InsertEventTagsTx(ctx, tx, links)
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var total int64
	if err := store.db.Model(&models.EventTag{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("total=%d want 2", total)
	}
}

func TestUpsertMarkets_UpdatesOnConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	eventID := uint(1)
	seed := []models.Market{{
		PolymarketMarketID: 501,
		EventID:            &eventID,
		Question:           strp("Will the Celtics win?"),
	}}
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertMarketsTx(ctx, tx, seed)
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	update := []models.Market{{
		PolymarketMarketID: 501,
		EventID:            &eventID,
		Question:           strp("Will the Celtics win?"),
		Status:             strp("resolved"),
	}}
	err = store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertMarketsTx(ctx, tx, update)
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	markets, err := store.FindMarketsByNaturalIDs(ctx, []int64{501})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("markets=%d want 1", len(markets))
	}
	if markets[0].Status == nil || *markets[0].Status != "resolved" {
		t.Fatalf("status=%v", markets[0].Status)
	}
}

func TestSaveIngestionState_UpsertsByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.IngestionState{
		Key:         "polymarket_nba_last_sync",
		SyncedAt:    time.Now().UTC().Add(-time.Hour),
		EventCount:  1,
		MarketCount: 2,
	}
	if err := store.SaveIngestionState(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	msg := "gamma unavailable"
	second := &models.IngestionState{
		Key:       "polymarket_nba_last_sync",
		SyncedAt:  time.Now().UTC(),
		LastError: &msg,
	}
	if err := store.SaveIngestionFailure(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var total int64
	if err := store.db.Model(&models.IngestionState{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("total=%d want 1", total)
	}
	state, err := store.GetIngestionState(ctx, "polymarket_nba_last_sync")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state == nil || state.LastError == nil || *state.LastError != msg {
		t.Fatalf("state=%+v", state)
	}
	// The failure write must not disturb the last successful run's counts.
	if state.EventCount != 1 || state.MarketCount != 2 {
		t.Fatalf("counts=(%d,%d) want (1,2)", state.EventCount, state.MarketCount)
	}

	missing, err := store.GetIngestionState(ctx, "unknown")
	if err != nil || missing != nil {
		t.Fatalf("missing=(%v,%v) want nil,nil", missing, err)
	}
}

func TestListEvents_DateWindowAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	early := day.Add(18 * time.Hour)
	late := day.Add(23 * time.Hour)
	outside := day.AddDate(0, 0, 2)
	seed := []models.Event{
		{PolymarketEventID: 1, StartDate: &early},
		{PolymarketEventID: 2, StartDate: &late},
		{PolymarketEventID: 3, StartDate: &outside},
	}
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertEventsTx(ctx, tx, seed)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	dayEnd := day.Add(24*time.Hour - time.Millisecond)
	items, err := store.ListEvents(ctx, repository.ListEventsParams{
		DayStart: &day,
		DayEnd:   &dayEnd,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items=%d want 2", len(items))
	}
	if items[0].PolymarketEventID != 2 || items[1].PolymarketEventID != 1 {
		t.Fatalf("order=%d,%d want latest first", items[0].PolymarketEventID, items[1].PolymarketEventID)
	}
}

func TestListStreamTokenIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active := true
	inactive := false
	closed := true
	seed := []models.Market{
		{PolymarketMarketID: 1, Active: &active, ClobTokenIDs: datatypes.JSON(`["111","222"]`)},
		{PolymarketMarketID: 2, Active: &active, ClobTokenIDs: datatypes.JSON(`["222","333"]`)},
		{PolymarketMarketID: 3, Active: &inactive, ClobTokenIDs: datatypes.JSON(`["444"]`)},
		{PolymarketMarketID: 4, Active: &active, Closed: &closed, ClobTokenIDs: datatypes.JSON(`["555"]`)},
		{PolymarketMarketID: 5, Active: &active},
	}
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.UpsertMarketsTx(ctx, tx, seed)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids, err := store.ListStreamTokenIDs(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, id := range ids {
		if got[id] {
			t.Fatalf("duplicate id %s", id)
		}
		got[id] = true
	}
	if len(ids) != 3 || !got["111"] || !got["222"] || !got["333"] {
		t.Fatalf("ids=%v", ids)
	}
}

func TestUpsertOrderbookLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.OrderbookLatest{
		TokenID:    "111",
		SnapshotTS: time.Now().UTC().Add(-time.Minute),
		BidsJSON:   datatypes.JSON(`[["0.5","10"]]`),
		AsksJSON:   datatypes.JSON(`[]`),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := store.UpsertOrderbookLatest(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &models.OrderbookLatest{
		TokenID:    "111",
		SnapshotTS: time.Now().UTC(),
		BidsJSON:   datatypes.JSON(`[["0.6","20"]]`),
		AsksJSON:   datatypes.JSON(`[["0.7","5"]]`),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := store.UpsertOrderbookLatest(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var total int64
	if err := store.db.Model(&models.OrderbookLatest{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("total=%d want 1", total)
	}
	var row models.OrderbookLatest
	if err := store.db.First(&row, "token_id = ?", "111").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(row.BidsJSON) != `[["0.6","20"]]` {
		t.Fatalf("bids=%s", row.BidsJSON)
	}
}
