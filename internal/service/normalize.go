package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"pmcatalog/internal/client/polymarket/gamma"
	"pmcatalog/internal/models"
)

// parseNaturalID resolves the first non-empty candidate and parses it as a
// strict base-10 positive integer. A candidate that is present but does not
// parse fails the whole resolution; callers drop the record.
func parseNaturalID(values ...gamma.String) (int64, bool) {
	for _, val := range values {
		s := strings.TrimSpace(string(val))
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func eventNaturalID(ev *gamma.Event) (int64, bool) {
	return parseNaturalID(ev.ID, ev.EventID, ev.LegacyEventID)
}

func marketNaturalID(m *gamma.Market) (int64, bool) {
	return parseNaturalID(m.ID, m.MarketID, m.LegacyMarketID)
}

// pickString returns the first candidate with non-blank text.
func pickString(values ...gamma.String) *string {
	for _, val := range values {
		s := strings.TrimSpace(string(val))
		if s != "" {
			return &s
		}
	}
	return nil
}

// pickTime returns the first candidate that resolved to a valid instant.
func pickTime(values ...gamma.Time) *time.Time {
	for _, val := range values {
		if t := val.Ptr(); t != nil {
			return t
		}
	}
	return nil
}

// pickNumber returns the first candidate that resolved to a numeric value.
func pickNumber(values ...gamma.Number) *decimal.Decimal {
	for _, val := range values {
		if d := val.Ptr(); d != nil {
			return d
		}
	}
	return nil
}

func eventStartTime(ev *gamma.Event) *time.Time {
	return pickTime(ev.StartDate, ev.EventDate, ev.StartTime)
}

func eventEndTime(ev *gamma.Event) *time.Time {
	return pickTime(ev.EndDate, ev.ResolveTime)
}

func marketEndTime(m *gamma.Market) *time.Time {
	return pickTime(m.EndDate, m.ResolveTime)
}

// arrayJSON re-encodes a tolerant array for storage; nil stays nil so the
// column reads back as SQL NULL rather than an empty array.
func arrayJSON(a gamma.Array) datatypes.JSON {
	if a == nil {
		return nil
	}
	payload, err := json.Marshal([]json.RawMessage(a))
	if err != nil {
		return nil
	}
	return datatypes.JSON(payload)
}

// textArrayJSON stores every element as a string, matching the index-aligned
// token-id list shape.
func textArrayJSON(a gamma.Array) datatypes.JSON {
	if a == nil {
		return nil
	}
	return mustJSON(a.Strings())
}

func buildEvent(ev *gamma.Event, naturalID int64) models.Event {
	return models.Event{
		PolymarketEventID: naturalID,
		Slug:              pickString(ev.Slug, ev.Ticker),
		Title:             pickString(ev.Title, ev.Ticker),
		Description:       pickString(ev.Description),
		StartDate:         eventStartTime(ev),
		EndDate:           ev.EndDate.Ptr(),
		Active:            ev.Active.Ptr(),
		Closed:            ev.Closed.Ptr(),
		Archived:          ev.Archived.Ptr(),
		Featured:          firstBool(ev.Featured, ev.New),
		Restricted:        ev.Restricted.Ptr(),
		Liquidity:         pickNumber(ev.LiquidityClob, ev.Liquidity),
		Volume:            pickNumber(ev.VolumeClob, ev.Volume),
		RawJSON:           rawJSON(ev.Raw),
	}
}

func buildMarket(m *gamma.Market, naturalID int64) models.Market {
	title := pickString(m.Title, m.GroupItemTitle)
	if title == nil {
		title = pickString(m.Question)
	}
	return models.Market{
		PolymarketMarketID: naturalID,
		Slug:               pickString(m.Slug),
		Question:           pickString(m.Question, m.QuestionTitle),
		Title:              title,
		Category:           pickString(m.Category),
		ConditionID:        pickString(m.ConditionID, m.ConditionIDAlt),
		MarketType:         pickString(m.MarketType, m.MarketTypeAlt, m.SportsType),
		FormatType:         pickString(m.FormatType, m.FormatTypeAlt),
		Active:             m.Active.Ptr(),
		Closed:             m.Closed.Ptr(),
		Status:             pickString(m.Status, m.UMAStatus),
		EndDate:            m.EndDate.Ptr(),
		ResolveTime:        m.ResolveTime.Ptr(),
		Liquidity:          pickNumber(m.LiquidityNum, m.LiquidityClob, m.Liquidity),
		Volume:             pickNumber(m.VolumeNum, m.VolumeClob, m.Volume),
		Volume24h:          pickNumber(m.Volume24hr, m.Volume24hrAlt),
		OutcomePrices:      arrayJSON(m.OutcomePrices),
		Outcomes:           arrayJSON(m.Outcomes),
		ClobTokenIDs:       textArrayJSON(m.ClobTokenIDs),
		RawJSON:            rawJSON(m.Raw),
	}
}

// normalizeTags accepts a list of tag objects, a list of bare numeric ids, or
// a comma-separated id string. Entries without a positive-integer id are
// dropped.
func normalizeTags(raw json.RawMessage) []models.Tag {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		for _, part := range strings.Split(s, ",") {
			items = append(items, json.RawMessage(strconv.Quote(strings.TrimSpace(part))))
		}
	}

	tags := make([]models.Tag, 0, len(items))
	for _, item := range items {
		var scalar gamma.String
		if err := json.Unmarshal(item, &scalar); err == nil && scalar != "" {
			id, ok := parseNaturalID(scalar)
			if !ok {
				continue
			}
			tags = append(tags, models.Tag{PolymarketTagID: id})
			continue
		}
		var tag gamma.Tag
		if err := json.Unmarshal(item, &tag); err != nil {
			continue
		}
		id, ok := parseNaturalID(tag.ID, tag.TagID)
		if !ok {
			continue
		}
		tags = append(tags, models.Tag{
			PolymarketTagID:   id,
			Label:             pickString(tag.Label),
			Slug:              pickString(tag.Slug),
			ForceShow:         firstBool(tag.ForceShow, tag.ForceShowAlt),
			ForceHide:         firstBool(tag.ForceHide, tag.ForceHideAlt),
			IsCarousel:        firstBool(tag.IsCarousel, tag.CarouselAlt),
			PublishedAt:       tag.PublishedAt.Ptr(),
			ExternalCreatedAt: tag.CreatedAt.Ptr(),
			ExternalUpdatedAt: tag.UpdatedAt.Ptr(),
		})
	}
	return tags
}

func firstBool(values ...gamma.Bool) *bool {
	for _, val := range values {
		if p := val.Ptr(); p != nil {
			return p
		}
	}
	return nil
}

func rawJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
