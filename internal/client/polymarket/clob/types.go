package clob

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal accepts CLOB numeric fields that arrive either as JSON numbers
// or as quoted strings. Null decodes to zero.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		d.Decimal = decimal.Zero
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", s, err)
		}
		d.Decimal = val
		return nil
	default:
		val, err := decimal.NewFromString(string(b))
		if err != nil {
			return fmt.Errorf("invalid decimal %s: %w", b, err)
		}
		d.Decimal = val
		return nil
	}
}

// Order is a single book level. The API serves levels either as
// ["price","size"] pairs or as objects with price and size (or qty).
type Order struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func (o *Order) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty order level")
	}

	if b[0] == '[' {
		var pair []Decimal
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) < 2 {
			return fmt.Errorf("order pair too short: %s", b)
		}
		o.Price = pair[0].Decimal
		o.Size = pair[1].Decimal
		return nil
	}

	var obj struct {
		Price Decimal  `json:"price"`
		Size  *Decimal `json:"size"`
		Qty   *Decimal `json:"qty"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("invalid order level: %s", b)
	}
	o.Price = obj.Price.Decimal
	switch {
	case obj.Size != nil:
		o.Size = obj.Size.Decimal
	case obj.Qty != nil:
		o.Size = obj.Qty.Decimal
	}
	return nil
}

type OrderBook struct {
	Bids []Order `json:"bids"`
	Asks []Order `json:"asks"`
}

func parsePrice(body []byte) (Decimal, error) {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return Decimal{}, err
	}
	raw, ok := resp["price"]
	if !ok {
		return Decimal{}, fmt.Errorf("price missing from response")
	}
	var price Decimal
	if err := price.UnmarshalJSON(raw); err != nil {
		return Decimal{}, err
	}
	return price, nil
}

func parseOrderBook(body []byte) (*OrderBook, error) {
	var book OrderBook
	if err := json.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("invalid book payload: %w", err)
	}
	return &book, nil
}
