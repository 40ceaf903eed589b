package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is the per-item snapshot stored inside a cart. Price and
// name are frozen at add time so later catalog edits cannot change an
// agreed basket.
type CartLine struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Name      string          `json:"name"`
}

// Subtotal returns quantity times the snapshot unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartLines maps item IDs to their snapshot lines. Persisted as jsonb.
type CartLines map[string]CartLine

// Value implements driver.Valuer so lines serialize on every write
// path, including map-based column updates.
func (c CartLines) Value() (driver.Value, error) {
	if c == nil {
		c = CartLines{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("CartLines: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (c *CartLines) Scan(src any) error {
	if src == nil {
		*c = CartLines{}
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("CartLines: unsupported Scan type %T", src)
	}

	if strings.TrimSpace(raw) == "" {
		*c = CartLines{}
		return nil
	}
	out := CartLines{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("CartLines: unmarshal: %w", err)
	}
	*c = out
	return nil
}

// Total sums every line subtotal.
func (c CartLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Units counts the total item units across all lines.
func (c CartLines) Units() int {
	units := 0
	for _, line := range c {
		units += line.Quantity
	}
	return units
}

// IsEmpty reports whether the cart holds no units.
func (c CartLines) IsEmpty() bool {
	return c.Units() == 0
}

// Clone returns a deep copy safe to mutate.
func (c CartLines) Clone() CartLines {
	if c == nil {
		return CartLines{}
	}
	out := make(CartLines, len(c))
	for id, line := range c {
		out[id] = line
	}
	return out
}
