package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices and weights go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Round2 rounds currency half away from zero, which is round-half-up for the
// non-negative amounts this package deals with.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func roundWeight(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// DerivePricePerUnit recomputes the per-unit price from the current average
// unit weight. When pricePerWeight is missing or the stock is empty the
// current price is returned unchanged.
func DerivePricePerUnit(weight decimal.Decimal, quantity int, pricePerWeight *decimal.Decimal, current *decimal.Decimal) *decimal.Decimal {
	if pricePerWeight == nil || quantity <= 0 || !weight.IsPositive() {
		return current
	}
	unitWeight := weight.Div(decimal.NewFromInt(int64(quantity)))
	price := Round2(unitWeight.Mul(*pricePerWeight))
	return &price
}

// NormalizeText is applied to every text attribute used for matching.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IdentityKey is the merge key of an inventory record: name_size_color.
func IdentityKey(name, size, color string) string {
	return NormalizeText(name) + "_" + NormalizeText(size) + "_" + NormalizeText(color)
}

// LooseDecimal accepts JSON numbers, numeric strings and formatted amounts
// ("1,200", "Rs 500"). Null, empty and unparseable input leave Valid false and
// the value at zero.
type LooseDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

func NewLooseDecimal(d decimal.Decimal) LooseDecimal {
	return LooseDecimal{Decimal: d, Valid: true}
}

func (l *LooseDecimal) UnmarshalJSON(b []byte) error {
	*l = LooseDecimal{}
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	d, err := utils.ParseAmount(v)
	if err != nil {
		return nil
	}
	*l = LooseDecimal{Decimal: d, Valid: true}
	return nil
}

func (l LooseDecimal) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return []byte("null"), nil
	}
	return []byte(l.Decimal.String()), nil
}

// Ptr returns nil for an unset value.
func (l LooseDecimal) Ptr() *decimal.Decimal {
	if !l.Valid {
		return nil
	}
	d := l.Decimal
	return &d
}

func (l LooseDecimal) IsWhole() bool {
	return l.Decimal.Equal(l.Decimal.Truncate(0))
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
