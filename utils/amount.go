package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = []string{",", "PKR", "pkr", "Rs.", "rs.", "Rs", "rs"}

// ParseAmount accepts numbers and user-formatted strings such as "20,000",
// "Rs 1,250.50" or "PKR -300".
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("invalid value")
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		for _, m := range currencyMarks {
			s = strings.ReplaceAll(s, m, "")
		}
		s = strings.TrimSpace(s)
		neg := false
		if strings.HasPrefix(s, "-") {
			neg = true
			s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
		}
		var b strings.Builder
		b.Grow(len(s) + 1)
		for _, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.Zero, fmt.Errorf("invalid value")
		}
		if neg {
			clean = "-" + clean
		}
		return decimal.NewFromString(clean)
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}
