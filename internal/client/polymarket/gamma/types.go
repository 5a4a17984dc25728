package gamma

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gamma payloads are loosely typed: ids arrive as strings or numbers, flags as
// booleans or strings, arrays either native or JSON-encoded inside a string.
// The scalar types below absorb those shapes without failing the decode; a
// value that cannot be interpreted becomes the zero ("unknown") value and is
// resolved by the normalization layer.

// String accepts a JSON string, number, or boolean; anything else decodes
// to the empty string.
type String string

func (s *String) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = String(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*s = String(num.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		if v {
			*s = "true"
		} else {
			*s = "false"
		}
		return nil
	}
	*s = ""
	return nil
}

// Bool is a tri-state flag: true, false, or unknown. It accepts JSON booleans
// and the strings "true"/"1"/"false"/"0"; everything else is unknown.
type Bool struct {
	value *bool
}

func (v *Bool) UnmarshalJSON(b []byte) error {
	v.value = nil
	switch strings.TrimSpace(string(b)) {
	case "null":
		return nil
	case "true", `"true"`, `"1"`:
		val := true
		v.value = &val
	case "false", `"false"`, `"0"`:
		val := false
		v.value = &val
	}
	return nil
}

// Ptr returns the flag value, or nil when unknown.
func (v Bool) Ptr() *bool {
	if v.value == nil {
		return nil
	}
	val := *v.value
	return &val
}

// True reports whether the flag is known and set.
func (v Bool) True() bool {
	return v.value != nil && *v.value
}

// Time accepts RFC3339 variants, a few date-only layouts, and unix epochs
// (seconds or milliseconds). Unparseable values decode to the unknown state.
type Time struct {
	value *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	t.value = nil
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				utc := ts.UTC()
				t.value = &utc
				return nil
			}
		}
		return nil
	}
	var epoch int64
	if err := json.Unmarshal(b, &epoch); err == nil {
		ts := epochToTime(epoch)
		t.value = &ts
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		ts := epochToTime(int64(f))
		t.value = &ts
	}
	return nil
}

func (t Time) Ptr() *time.Time {
	if t.value == nil {
		return nil
	}
	val := *t.value
	return &val
}

func epochToTime(v int64) time.Time {
	if v > 1_000_000_000_000 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// Number accepts a JSON number or a numeric string.
type Number struct {
	value *decimal.Decimal
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.value = nil
	if string(b) == "null" {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		if d, err := decimal.NewFromString(num.String()); err == nil {
			n.value = &d
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if d, err := decimal.NewFromString(s); err == nil {
			n.value = &d
		}
	}
	return nil
}

func (n Number) Ptr() *decimal.Decimal {
	if n.value == nil {
		return nil
	}
	val := *n.value
	return &val
}

// Array accepts a native JSON array or a JSON-encoded array inside a string;
// a string holding a single JSON value becomes a one-element array.
type Array []json.RawMessage

func (a *Array) UnmarshalJSON(b []byte) error {
	*a = nil
	if string(b) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err == nil {
		*a = items
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		*a = items
		return nil
	}
	var single json.RawMessage
	if err := json.Unmarshal([]byte(s), &single); err == nil {
		*a = Array{single}
	}
	return nil
}

// Strings renders every element as text.
func (a Array) Strings() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a))
	for _, item := range a {
		var s String
		if err := s.UnmarshalJSON(item); err == nil && s != "" {
			out = append(out, string(s))
			continue
		}
		out = append(out, strings.Trim(string(item), `"`))
	}
	return out
}

type Sport struct {
	Sport       String `json:"sport"`
	Series      String `json:"series"`
	SeriesID    String `json:"seriesId"`
	SeriesIDAlt String `json:"series_id"`
}

type Tag struct {
	ID           String `json:"id"`
	TagID        String `json:"tag_id"`
	Label        String `json:"label"`
	Slug         String `json:"slug"`
	ForceShow    Bool   `json:"forceShow"`
	ForceShowAlt Bool   `json:"force_show"`
	ForceHide    Bool   `json:"forceHide"`
	ForceHideAlt Bool   `json:"force_hide"`
	IsCarousel   Bool   `json:"isCarousel"`
	CarouselAlt  Bool   `json:"is_carousel"`
	PublishedAt  Time   `json:"publishedAt"`
	CreatedAt    Time   `json:"createdAt"`
	UpdatedAt    Time   `json:"updatedAt"`
}

type Market struct {
	ID             String `json:"id"`
	MarketID       String `json:"marketId"`
	LegacyMarketID String `json:"polymarketMarketId"`
	Slug           String `json:"slug"`
	Question       String `json:"question"`
	QuestionTitle  String `json:"questionTitle"`
	Title          String `json:"title"`
	GroupItemTitle String `json:"groupItemTitle"`
	Category       String `json:"category"`
	ConditionID    String `json:"conditionId"`
	ConditionIDAlt String `json:"condition_id"`
	MarketType     String `json:"marketType"`
	MarketTypeAlt  String `json:"market_type"`
	SportsType     String `json:"sportsMarketType"`
	FormatType     String `json:"formatType"`
	FormatTypeAlt  String `json:"format_type"`
	Status         String `json:"status"`
	UMAStatus      String `json:"umaResolutionStatus"`
	Active         Bool   `json:"active"`
	Closed         Bool   `json:"closed"`
	EndDate        Time   `json:"endDate"`
	ResolveTime    Time   `json:"resolveTime"`
	LiquidityNum   Number `json:"liquidityNum"`
	LiquidityClob  Number `json:"liquidityClob"`
	Liquidity      Number `json:"liquidity"`
	VolumeNum      Number `json:"volumeNum"`
	VolumeClob     Number `json:"volumeClob"`
	Volume         Number `json:"volume"`
	Volume24hr     Number `json:"volume24hr"`
	Volume24hrAlt  Number `json:"volume24Hour"`
	OutcomePrices  Array  `json:"outcomePrices"`
	Outcomes       Array  `json:"outcomes"`
	ClobTokenIDs   Array  `json:"clobTokenIds"`

	Raw json.RawMessage `json:"-"`
}

func (m *Market) UnmarshalJSON(b []byte) error {
	type alias Market
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = Market(a)
	m.Raw = append([]byte(nil), b...)
	return nil
}

type Event struct {
	ID            String          `json:"id"`
	EventID       String          `json:"eventId"`
	LegacyEventID String          `json:"polymarketEventId"`
	Ticker        String          `json:"ticker"`
	Slug          String          `json:"slug"`
	Title         String          `json:"title"`
	Description   String          `json:"description"`
	StartDate     Time            `json:"startDate"`
	EventDate     Time            `json:"eventDate"`
	StartTime     Time            `json:"startTime"`
	EndDate       Time            `json:"endDate"`
	ResolveTime   Time            `json:"resolveTime"`
	Active        Bool            `json:"active"`
	Closed        Bool            `json:"closed"`
	Archived      Bool            `json:"archived"`
	Featured      Bool            `json:"featured"`
	New           Bool            `json:"new"`
	Restricted    Bool            `json:"restricted"`
	Liquidity     Number          `json:"liquidity"`
	LiquidityClob Number          `json:"liquidityClob"`
	Volume        Number          `json:"volume"`
	VolumeClob    Number          `json:"volumeClob"`
	Tags          json.RawMessage `json:"tags"`
	Markets       []Market        `json:"markets"`

	Raw json.RawMessage `json:"-"`
}

func (e *Event) UnmarshalJSON(b []byte) error {
	type alias Event
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = Event(a)
	e.Raw = append([]byte(nil), b...)
	return nil
}
