package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"pmcatalog/internal/client/polymarket/clob"
	"pmcatalog/internal/models"
	"pmcatalog/internal/repository"
)

// BookStreamService keeps clob_orderbook_latest fresh from the market
// websocket channel. Only "book" events mutate state; everything else is
// logged at debug level and dropped.
type BookStreamService struct {
	Repo   repository.CatalogRepository
	Logger *zap.Logger
}

type BookStreamOptions struct {
	URL             string
	RefreshInterval time.Duration
	MaxAssets       int
}

func (s *BookStreamService) RunBookStream(ctx context.Context, opts BookStreamOptions) error {
	if s == nil || s.Repo == nil {
		return fmt.Errorf("repository is required")
	}
	if opts.MaxAssets <= 0 {
		opts.MaxAssets = 200
	}
	if s.Logger != nil {
		s.Logger.Info("book stream starting",
			zap.String("url", opts.URL),
			zap.Duration("refresh_interval", opts.RefreshInterval),
			zap.Int("max_assets", opts.MaxAssets),
		)
	}
	provider := func(ctx context.Context) ([]string, error) {
		ids, err := s.Repo.ListStreamTokenIDs(ctx, opts.MaxAssets)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("list stream token ids failed", zap.Error(err))
			}
			return nil, err
		}
		return ids, nil
	}
	stream := clob.NewStream(clob.StreamOptions{
		URL:             opts.URL,
		Provider:        provider,
		RefreshInterval: opts.RefreshInterval,
		Logger:          s.Logger,
	})
	return stream.Run(ctx, func(env clob.Envelope, raw []byte) {
		s.handleMessage(ctx, env, raw)
	})
}

func (s *BookStreamService) handleMessage(ctx context.Context, env clob.Envelope, raw []byte) {
	if normalizeEventType(env.EventType, raw) != "book" {
		return
	}
	tokenID := strings.TrimSpace(env.AssetID)
	if tokenID == "" {
		tokenID = extractTokenID(raw)
	}
	if err := s.handleBook(ctx, tokenID, env, raw); err != nil && s.Logger != nil {
		s.Logger.Warn("handle book failed", zap.String("token_id", tokenID), zap.Error(err))
	}
}

func (s *BookStreamService) handleBook(ctx context.Context, tokenID string, env clob.Envelope, raw []byte) error {
	if tokenID == "" {
		return fmt.Errorf("token_id missing")
	}
	book, err := parseBookPayload(raw)
	if err != nil {
		return err
	}
	bestBid := topPrice(book.Bids)
	bestAsk := topPrice(book.Asks)
	snapshotTS := parseStreamTimestamp(env.Timestamp)
	if snapshotTS.IsZero() {
		snapshotTS = time.Now().UTC()
	}
	item := &models.OrderbookLatest{
		TokenID:    tokenID,
		SnapshotTS: snapshotTS,
		BidsJSON:   datatypes.JSON(book.BidsRaw),
		AsksJSON:   datatypes.JSON(book.AsksRaw),
		BestBid:    bestBid,
		BestAsk:    bestAsk,
		Mid:        computeMid(bestBid, bestAsk),
		Source:     strPtr("ws"),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.Repo.UpsertOrderbookLatest(ctx, item)
}

type bookPayload struct {
	BidsRaw json.RawMessage
	AsksRaw json.RawMessage
	Bids    []clob.Order
	Asks    []clob.Order
}

// parseBookPayload tolerates the book living at the top level or nested
// under "book"/"data".
func parseBookPayload(raw []byte) (bookPayload, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return bookPayload{}, err
	}
	payload := root["book"]
	if len(payload) == 0 {
		payload = root["data"]
	}
	obj := root
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &obj); err != nil {
			return bookPayload{}, err
		}
	}
	out := bookPayload{
		BidsRaw: normalizeRawArray(obj["bids"]),
		AsksRaw: normalizeRawArray(obj["asks"]),
	}
	_ = json.Unmarshal(out.BidsRaw, &out.Bids)
	_ = json.Unmarshal(out.AsksRaw, &out.Asks)
	return out, nil
}

func normalizeRawArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]")
	}
	return raw
}

func topPrice(levels []clob.Order) *decimal.Decimal {
	if len(levels) == 0 {
		return nil
	}
	val := levels[0].Price
	if !val.IsPositive() {
		return nil
	}
	return &val
}

func computeMid(bid, ask *decimal.Decimal) *decimal.Decimal {
	if bid == nil || ask == nil {
		return nil
	}
	mid := bid.Add(*ask).Div(decimal.NewFromInt(2))
	return &mid
}

// parseStreamTimestamp handles RFC3339 and epoch values; epochs past the
// year-33658 mark in seconds are treated as milliseconds.
func parseStreamTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if v > 1_000_000_000_000 {
			return time.UnixMilli(v).UTC()
		}
		return time.Unix(v, 0).UTC()
	}
	return time.Time{}
}

func normalizeEventType(eventType string, raw []byte) string {
	val := strings.ToLower(strings.TrimSpace(eventType))
	if val != "" {
		return val
	}
	var probe struct {
		EventType string `json:"event_type"`
		Type      string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if probe.EventType != "" {
			return strings.ToLower(strings.TrimSpace(probe.EventType))
		}
		if probe.Type != "" {
			return strings.ToLower(strings.TrimSpace(probe.Type))
		}
	}
	return "unknown"
}

func extractTokenID(raw []byte) string {
	var probe struct {
		AssetID string `json:"asset_id"`
		TokenID string `json:"token_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.AssetID != "" {
		return strings.TrimSpace(probe.AssetID)
	}
	return strings.TrimSpace(probe.TokenID)
}
