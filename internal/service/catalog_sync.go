package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pmcatalog/internal/client/polymarket/gamma"
	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

// GammaClient is the slice of the catalog API the pipeline consumes.
type GammaClient interface {
	ListSports(ctx context.Context) ([]gamma.Sport, error)
	ListEvents(ctx context.Context, params gamma.ListEventsParams) ([]gamma.Event, error)
}

// CatalogSyncService runs the fetch/filter/normalize/reconcile pipeline. At
// most one run is active per process; overlapping triggers are no-ops.
type CatalogSyncService struct {
	Repo   repository.CatalogRepository
	Gamma  GammaClient
	Logger *zap.Logger

	running atomic.Bool
}

type SyncOptions struct {
	Sport        string
	PageLimit    int
	MaxPages     int
	Active       *bool
	Closed       *bool
	TagID        *int64
	UpcomingDays int
	StateKey     string
}

func (o SyncOptions) stateKey() string {
	if o.StateKey != "" {
		return o.StateKey
	}
	return "polymarket_nba_last_sync"
}

type SyncResult struct {
	Skipped  bool
	Pages    int
	Events   int
	Markets  int
	Tags     int
	Duration time.Duration
}

// RunReconciliation executes one pipeline run. The guard makes an overlapping
// trigger return immediately with Skipped set; a failed run clears the guard
// so the next trigger proceeds.
func (s *CatalogSyncService) RunReconciliation(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		if s.Logger != nil {
			s.Logger.Info("catalog sync already running, trigger skipped")
		}
		return &SyncResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	startedAt := time.Now().UTC()
	result, err := s.runOnce(ctx, opts, startedAt)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("catalog sync failed", zap.String("sport", opts.Sport), zap.Error(err))
		}
		s.writeFailureState(ctx, opts.stateKey(), startedAt, err)
		return nil, err
	}
	result.Duration = time.Since(startedAt)
	if s.Logger != nil {
		s.Logger.Info("catalog sync finished",
			zap.String("sport", opts.Sport),
			zap.Int("pages", result.Pages),
			zap.Int("events", result.Events),
			zap.Int("markets", result.Markets),
			zap.Duration("duration", result.Duration),
		)
	}
	return result, nil
}

func (s *CatalogSyncService) runOnce(ctx context.Context, opts SyncOptions, startedAt time.Time) (*SyncResult, error) {
	seriesID, err := s.resolveSeriesID(ctx, opts.Sport)
	if err != nil {
		return nil, err
	}

	rawEvents, pages, err := s.fetchSeriesEvents(ctx, seriesID, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	activeEvents := filterActiveFutureEvents(rawEvents, now)
	upcomingEvents := filterUpcomingEvents(rawEvents, opts.UpcomingDays, now)
	merged := mergeEvents(activeEvents, upcomingEvents)

	batch := buildBatch(merged, eventIDSet(activeEvents), eventIDSet(upcomingEvents), now)

	marketsWritten, err := s.reconcile(ctx, batch)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.SaveIngestionState(ctx, &models.IngestionState{
		Key:         opts.stateKey(),
		SyncedAt:    startedAt,
		EventCount:  len(batch.events),
		MarketCount: marketsWritten,
	}); err != nil {
		return nil, fmt.Errorf("save ingestion state: %w", err)
	}

	return &SyncResult{
		Pages:   pages,
		Events:  len(batch.events),
		Markets: marketsWritten,
		Tags:    len(batch.tags),
	}, nil
}

func (s *CatalogSyncService) resolveSeriesID(ctx context.Context, sport string) (int64, error) {
	sports, err := s.Gamma.ListSports(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sports: %w", err)
	}
	for _, entry := range sports {
		if !strings.EqualFold(string(entry.Sport), sport) {
			continue
		}
		if id, ok := parseNaturalID(entry.Series, entry.SeriesID, entry.SeriesIDAlt); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unable to resolve series id for sport %q", sport)
}

// fetchSeriesEvents walks pages in descending-id order until a short page or
// the page cap. Offsets are sequential; a transport error aborts the run
// before any write has happened.
func (s *CatalogSyncService) fetchSeriesEvents(ctx context.Context, seriesID int64, opts SyncOptions) ([]gamma.Event, int, error) {
	limit := opts.PageLimit
	if limit <= 0 {
		limit = 50
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	var events []gamma.Event
	offset := 0
	pages := 0
	for page := 0; page < maxPages; page++ {
		batch, err := s.Gamma.ListEvents(ctx, gamma.ListEventsParams{
			SeriesID:  seriesID,
			Active:    opts.Active,
			Closed:    opts.Closed,
			TagID:     opts.TagID,
			Limit:     limit,
			Offset:    offset,
			Order:     "id",
			Ascending: false,
		})
		if err != nil {
			return nil, pages, fmt.Errorf("fetch events page offset=%d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}
		pages++
		events = append(events, batch...)
		if len(batch) < limit {
			break
		}
		offset += limit
	}
	return events, pages, nil
}

func filterActiveFutureEvents(events []gamma.Event, now time.Time) []gamma.Event {
	out := make([]gamma.Event, 0, len(events))
	for i := range events {
		ev := &events[i]
		if !ev.Active.True() {
			continue
		}
		end := eventEndTime(ev)
		if end == nil || !end.After(now) {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

func filterUpcomingEvents(events []gamma.Event, upcomingDays int, now time.Time) []gamma.Event {
	if upcomingDays <= 0 {
		return nil
	}
	windowStart, windowEnd := upcomingWindow(now, upcomingDays)
	out := make([]gamma.Event, 0, len(events))
	for i := range events {
		ev := &events[i]
		start := eventStartTime(ev)
		if start == nil {
			continue
		}
		if start.Before(windowStart) || start.After(windowEnd) {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

// upcomingWindow spans today 00:00:00Z through the last millisecond of the
// day upcomingDays ahead.
func upcomingWindow(now time.Time, upcomingDays int) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, upcomingDays)
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999_000_000, time.UTC)
	return start, end
}

func isActiveFutureMarket(m *gamma.Market, now time.Time) bool {
	if !m.Active.True() {
		return false
	}
	end := marketEndTime(m)
	return end != nil && end.After(now)
}

// isUpcomingMarket keeps markets without a resolvable end time; only a past
// end time excludes.
func isUpcomingMarket(m *gamma.Market, now time.Time) bool {
	end := marketEndTime(m)
	if end == nil {
		return true
	}
	return end.After(now)
}

// mergeEvents concatenates both sets keyed by natural event id, first
// occurrence wins, so the primary (active-future) rendition of a shared id
// takes precedence.
func mergeEvents(primary, secondary []gamma.Event) []gamma.Event {
	seen := map[int64]struct{}{}
	merged := make([]gamma.Event, 0, len(primary)+len(secondary))
	add := func(ev gamma.Event) {
		id, ok := eventNaturalID(&ev)
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		merged = append(merged, ev)
	}
	for _, ev := range primary {
		add(ev)
	}
	for _, ev := range secondary {
		add(ev)
	}
	return merged
}

func eventIDSet(events []gamma.Event) map[int64]struct{} {
	out := make(map[int64]struct{}, len(events))
	for i := range events {
		if id, ok := eventNaturalID(&events[i]); ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// marketCandidate carries a normalized market plus the natural id of its
// parent event; the surrogate id is attached at reconcile time.
type marketCandidate struct {
	market       models.Market
	eventNatural int64
}

type eventTagCandidate struct {
	eventNatural int64
	tagID        int64
}

type catalogBatch struct {
	tags      []models.Tag
	events    []models.Event
	markets   []marketCandidate
	eventTags []eventTagCandidate
}

func buildBatch(merged []gamma.Event, activeIDs, upcomingIDs map[int64]struct{}, now time.Time) catalogBatch {
	var batch catalogBatch

	tagIndex := map[int64]int{}
	marketIndex := map[int64]int{}
	linkSeen := map[[2]int64]struct{}{}

	for i := range merged {
		ev := &merged[i]
		eventID, ok := eventNaturalID(ev)
		if !ok {
			continue
		}
		_, isActive := activeIDs[eventID]
		_, isUpcoming := upcomingIDs[eventID]

		batch.events = append(batch.events, buildEvent(ev, eventID))

		for _, tag := range normalizeTags(ev.Tags) {
			if idx, dup := tagIndex[tag.PolymarketTagID]; dup {
				batch.tags[idx] = tag
			} else {
				tagIndex[tag.PolymarketTagID] = len(batch.tags)
				batch.tags = append(batch.tags, tag)
			}
			key := [2]int64{eventID, tag.PolymarketTagID}
			if _, dup := linkSeen[key]; !dup {
				linkSeen[key] = struct{}{}
				batch.eventTags = append(batch.eventTags, eventTagCandidate{
					eventNatural: eventID,
					tagID:        tag.PolymarketTagID,
				})
			}
		}

		for j := range ev.Markets {
			m := &ev.Markets[j]
			if isActive {
				if !isActiveFutureMarket(m, now) {
					continue
				}
			} else if isUpcoming {
				if !isUpcomingMarket(m, now) {
					continue
				}
			}
			marketID, ok := marketNaturalID(m)
			if !ok {
				continue
			}
			candidate := marketCandidate{
				market:       buildMarket(m, marketID),
				eventNatural: eventID,
			}
			if idx, dup := marketIndex[marketID]; dup {
				batch.markets[idx] = candidate
			} else {
				marketIndex[marketID] = len(batch.markets)
				batch.markets = append(batch.markets, candidate)
			}
		}
	}
	return batch
}

// reconcile writes the batch in FK order inside one transaction: tags, then
// events, then the surrogate-id lookup, join rows, and finally markets.
// Markets and join rows whose event id does not resolve are dropped, never
// written dangling.
func (s *CatalogSyncService) reconcile(ctx context.Context, batch catalogBatch) (int, error) {
	marketsWritten := 0
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertTagsTx(ctx, tx, batch.tags); err != nil {
			return fmt.Errorf("upsert tags: %w", err)
		}
		if err := s.Repo.UpsertEventsTx(ctx, tx, batch.events); err != nil {
			return fmt.Errorf("upsert events: %w", err)
		}

		naturalIDs := make([]int64, 0, len(batch.events))
		for _, ev := range batch.events {
			naturalIDs = append(naturalIDs, ev.PolymarketEventID)
		}
		stored, err := s.Repo.FindEventsByNaturalIDsTx(ctx, tx, naturalIDs)
		if err != nil {
			return fmt.Errorf("load stored events: %w", err)
		}
		surrogateByNatural := make(map[int64]uint, len(stored))
		for _, ev := range stored {
			surrogateByNatural[ev.PolymarketEventID] = ev.ID
		}

		links := make([]models.EventTag, 0, len(batch.eventTags))
		for _, link := range batch.eventTags {
			surrogate, ok := surrogateByNatural[link.eventNatural]
			if !ok {
				continue
			}
			links = append(links, models.EventTag{EventID: surrogate, TagID: link.tagID})
		}
		if err := s.Repo.InsertEventTagsTx(ctx, tx, links); err != nil {
			return fmt.Errorf("insert event tags: %w", err)
		}

		markets := make([]models.Market, 0, len(batch.markets))
		for _, candidate := range batch.markets {
			surrogate, ok := surrogateByNatural[candidate.eventNatural]
			if !ok {
				continue
			}
			market := candidate.market
			market.EventID = &surrogate
			markets = append(markets, market)
		}
		if err := s.Repo.UpsertMarketsTx(ctx, tx, markets); err != nil {
			return fmt.Errorf("upsert markets: %w", err)
		}
		marketsWritten = len(markets)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marketsWritten, nil
}

func (s *CatalogSyncService) writeFailureState(ctx context.Context, key string, startedAt time.Time, runErr error) {
	msg := runErr.Error()
	state := &models.IngestionState{
		Key:       key,
		SyncedAt:  startedAt,
		LastError: &msg,
	}
	if err := s.Repo.SaveIngestionFailure(ctx, state); err != nil && s.Logger != nil {
		s.Logger.Warn("save failure state", zap.Error(err))
	}
}
