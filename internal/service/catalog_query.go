package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pmcatalog/internal/client/polymarket/clob"
	"pmcatalog/internal/client/polymarket/gamma"
	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

// Caller-input faults, mapped to 4xx by the handler layer; everything else
// surfaces as a server fault.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// ClobClient is the slice of the order-book API the query service consumes.
type ClobClient interface {
	GetPrice(ctx context.Context, tokenID, side string) (clob.Decimal, error)
	GetBook(ctx context.Context, tokenID string) (*clob.OrderBook, error)
}

// CatalogQueryService serves read views over the persisted snapshot plus
// live price/order-book fan-out.
type CatalogQueryService struct {
	Repo repository.CatalogRepository
	Clob ClobClient

	// FanoutLimit bounds concurrent CLOB lookups per request; zero means the
	// default of 8.
	FanoutLimit int
}

type ListEventsQuery struct {
	Date     string
	Search   string
	Page     int
	PageSize int
}

type EventPage struct {
	Items    []models.Event
	Page     int
	PageSize int
	Total    int64
}

func (s *CatalogQueryService) ListEvents(ctx context.Context, q ListEventsQuery) (*EventPage, error) {
	page := clampPage(q.Page)
	size := clampPageSize(q.PageSize)

	params := repository.ListEventsParams{
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if strings.TrimSpace(q.Search) != "" {
		params.Search = strPtr(q.Search)
	}
	if q.Date != "" {
		start, end, err := dayWindow(q.Date)
		if err != nil {
			return nil, err
		}
		params.DayStart = &start
		params.DayEnd = &end
	}

	total, err := s.Repo.CountEvents(ctx, params)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListEvents(ctx, params)
	if err != nil {
		return nil, err
	}
	return &EventPage{Items: items, Page: page, PageSize: size, Total: total}, nil
}

type ListMarketsQuery struct {
	Date     string
	Search   string
	EventID  *uint
	Page     int
	PageSize int
}

type MarketPage struct {
	Items    []models.Market
	Page     int
	PageSize int
	Total    int64
}

func (s *CatalogQueryService) ListMarkets(ctx context.Context, q ListMarketsQuery) (*MarketPage, error) {
	page := clampPage(q.Page)
	size := clampPageSize(q.PageSize)

	params := repository.ListMarketsParams{
		EventID: q.EventID,
		Limit:   size,
		Offset:  (page - 1) * size,
	}
	if strings.TrimSpace(q.Search) != "" {
		params.Search = strPtr(q.Search)
	}
	if q.Date != "" {
		start, end, err := dayWindow(q.Date)
		if err != nil {
			return nil, err
		}
		params.DayStart = &start
		params.DayEnd = &end
	}

	total, err := s.Repo.CountMarkets(ctx, params)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListMarkets(ctx, params)
	if err != nil {
		return nil, err
	}
	return &MarketPage{Items: items, Page: page, PageSize: size, Total: total}, nil
}

type LiveQuery struct {
	TokenID   string
	MarketIDs []int64
	Side      string
}

type TokenPrice struct {
	TokenID string          `json:"tokenId"`
	Outcome *string         `json:"outcome"`
	Side    string          `json:"side"`
	Price   decimal.Decimal `json:"price"`
}

type MarketPrices struct {
	MarketID int64        `json:"marketId"`
	Prices   []TokenPrice `json:"prices"`
}

type LivePricesResult struct {
	TokenID *string          `json:"tokenId,omitempty"`
	Side    string           `json:"side"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Markets []MarketPrices   `json:"markets,omitempty"`
}

// GetLivePrices proxies quotes for one token or for every token of the given
// markets. Lookups fan out concurrently; any failing lookup fails the whole
// request.
func (s *CatalogQueryService) GetLivePrices(ctx context.Context, q LiveQuery) (*LivePricesResult, error) {
	side, err := normalizeSide(q.Side)
	if err != nil {
		return nil, err
	}

	if q.TokenID != "" {
		price, err := s.Clob.GetPrice(ctx, q.TokenID, side)
		if err != nil {
			return nil, fmt.Errorf("fetch price for token %s: %w", q.TokenID, err)
		}
		return &LivePricesResult{
			TokenID: strPtr(q.TokenID),
			Side:    side,
			Price:   &price.Decimal,
		}, nil
	}

	markets, err := s.resolveMarkets(ctx, q.MarketIDs)
	if err != nil {
		return nil, err
	}

	result := make([]MarketPrices, len(markets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.fanoutLimit())
	for i, market := range markets {
		i := i
		tokens := buildTokenMeta(market)
		result[i] = MarketPrices{
			MarketID: market.PolymarketMarketID,
			Prices:   make([]TokenPrice, len(tokens)),
		}
		for j, token := range tokens {
			j, token := j, token
			group.Go(func() error {
				price, err := s.Clob.GetPrice(groupCtx, token.TokenID, side)
				if err != nil {
					return fmt.Errorf("fetch price for token %s: %w", token.TokenID, err)
				}
				result[i].Prices[j] = TokenPrice{
					TokenID: token.TokenID,
					Outcome: token.Outcome,
					Side:    side,
					Price:   price.Decimal,
				}
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &LivePricesResult{Side: side, Markets: result}, nil
}

type TokenOrderbook struct {
	TokenID   string          `json:"tokenId"`
	Outcome   *string         `json:"outcome"`
	Orderbook *clob.OrderBook `json:"orderbook"`
}

type MarketOrderbooks struct {
	MarketID   int64            `json:"marketId"`
	Orderbooks []TokenOrderbook `json:"orderbooks"`
}

type OrderbooksResult struct {
	TokenID   *string            `json:"tokenId,omitempty"`
	Orderbook *clob.OrderBook    `json:"orderbook,omitempty"`
	Markets   []MarketOrderbooks `json:"markets,omitempty"`
}

func (s *CatalogQueryService) GetOrderbooks(ctx context.Context, q LiveQuery) (*OrderbooksResult, error) {
	if q.TokenID != "" {
		book, err := s.Clob.GetBook(ctx, q.TokenID)
		if err != nil {
			return nil, fmt.Errorf("fetch orderbook for token %s: %w", q.TokenID, err)
		}
		return &OrderbooksResult{TokenID: strPtr(q.TokenID), Orderbook: book}, nil
	}

	markets, err := s.resolveMarkets(ctx, q.MarketIDs)
	if err != nil {
		return nil, err
	}

	result := make([]MarketOrderbooks, len(markets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.fanoutLimit())
	for i, market := range markets {
		i := i
		tokens := buildTokenMeta(market)
		result[i] = MarketOrderbooks{
			MarketID:   market.PolymarketMarketID,
			Orderbooks: make([]TokenOrderbook, len(tokens)),
		}
		for j, token := range tokens {
			j, token := j, token
			group.Go(func() error {
				book, err := s.Clob.GetBook(groupCtx, token.TokenID)
				if err != nil {
					return fmt.Errorf("fetch orderbook for token %s: %w", token.TokenID, err)
				}
				result[i].Orderbooks[j] = TokenOrderbook{
					TokenID:   token.TokenID,
					Outcome:   token.Outcome,
					Orderbook: book,
				}
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &OrderbooksResult{Markets: result}, nil
}

func (s *CatalogQueryService) resolveMarkets(ctx context.Context, marketIDs []int64) ([]models.Market, error) {
	ids := dedupeIDs(marketIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: tokenId or marketId is required", ErrBadRequest)
	}
	markets, err := s.Repo.FindMarketsByNaturalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("%w: market not found", ErrNotFound)
	}
	return markets, nil
}

func (s *CatalogQueryService) fanoutLimit() int {
	if s.FanoutLimit > 0 {
		return s.FanoutLimit
	}
	return 8
}

type tokenMeta struct {
	TokenID string
	Outcome *string
}

// buildTokenMeta pairs each token id with the outcome label at the same
// index; positions beyond the shorter list carry no outcome.
func buildTokenMeta(market models.Market) []tokenMeta {
	var tokenIDs []string
	if len(market.ClobTokenIDs) > 0 {
		_ = json.Unmarshal(market.ClobTokenIDs, &tokenIDs)
	}
	var outcomes []json.RawMessage
	if len(market.Outcomes) > 0 {
		_ = json.Unmarshal(market.Outcomes, &outcomes)
	}
	out := make([]tokenMeta, 0, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		tokenID = strings.TrimSpace(tokenID)
		if tokenID == "" {
			continue
		}
		meta := tokenMeta{TokenID: tokenID}
		if i < len(outcomes) {
			meta.Outcome = pickOutcomeName(outcomes[i])
		}
		out = append(out, meta)
	}
	return out
}

func pickOutcomeName(raw json.RawMessage) *string {
	var s gamma.String
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return pickString(s)
	}
	var obj struct {
		Name    gamma.String `json:"name"`
		Title   gamma.String `json:"title"`
		Label   gamma.String `json:"label"`
		Outcome gamma.String `json:"outcome"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return pickString(obj.Name, obj.Title, obj.Label, obj.Outcome)
	}
	return nil
}

func normalizeSide(side string) (string, error) {
	side = strings.ToLower(strings.TrimSpace(side))
	if side == "" {
		return "buy", nil
	}
	if side != "buy" && side != "sell" {
		return "", fmt.Errorf("%w: side must be buy or sell", ErrBadRequest)
	}
	return side, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 50
	}
	if size > 200 {
		return 200
	}
	return size
}

// dayWindow expands a YYYY-MM-DD date into the inclusive UTC day bounds.
func dayWindow(date string) (time.Time, time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
	}
	start := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 999_000_000, time.UTC)
	return start, end, nil
}
