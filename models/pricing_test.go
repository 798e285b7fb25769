package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerivePricePerUnit(t *testing.T) {
	ppw := dec("100")
	existing := dec("42")

	cases := []struct {
		name     string
		weight   string
		quantity int
		ppw      *decimal.Decimal
		current  *decimal.Decimal
		want     *string
	}{
		{"derived from unit weight", "50", 10, &ppw, nil, strPtr("500")},
		{"same ratio after deduction", "30", 6, &ppw, nil, strPtr("500")},
		{"ratio changed", "30", 7, &ppw, nil, strPtr("428.57")},
		{"round half up", "0.00505", 1, &ppw, nil, strPtr("0.51")},
		{"zero quantity keeps current", "30", 0, &ppw, &existing, strPtr("42")},
		{"zero weight keeps current", "0", 5, &ppw, &existing, strPtr("42")},
		{"no price per weight keeps nil", "30", 6, nil, nil, nil},
	}
	for _, tc := range cases {
		got := DerivePricePerUnit(dec(tc.weight), tc.quantity, tc.ppw, tc.current)
		if tc.want == nil {
			if got != nil {
				t.Fatalf("%s: expected nil, got %s", tc.name, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("%s: expected %s, got nil", tc.name, *tc.want)
		}
		if !got.Equal(dec(*tc.want)) {
			t.Fatalf("%s: expected %s, got %s", tc.name, *tc.want, got)
		}
	}
}

func TestIdentityKeyNormalizes(t *testing.T) {
	a := IdentityKey("  Square Pipe ", "1x1", " Black")
	b := IdentityKey("square pipe", "1X1", "black ")
	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
	if a != "square pipe_1x1_black" {
		t.Fatalf("unexpected key %q", a)
	}
	if got := IdentityKey("bolt", "", ""); got != "bolt__" {
		t.Fatalf("empty attributes should concatenate as empty strings, got %q", got)
	}
}

func TestLooseDecimal(t *testing.T) {
	var in struct {
		A LooseDecimal `json:"a"`
		B LooseDecimal `json:"b"`
		C LooseDecimal `json:"c"`
		D LooseDecimal `json:"d"`
		E LooseDecimal `json:"e"`
	}
	body := `{"a": 12.5, "b": "1,200", "c": "abc", "d": null}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.A.Valid || !in.A.Decimal.Equal(dec("12.5")) {
		t.Fatalf("a: got %+v", in.A)
	}
	if !in.B.Valid || !in.B.Decimal.Equal(dec("1200")) {
		t.Fatalf("b: got %+v", in.B)
	}
	if in.C.Valid || !in.C.Decimal.IsZero() {
		t.Fatalf("c: invalid input should be unset zero, got %+v", in.C)
	}
	if in.D.Valid || in.E.Valid {
		t.Fatalf("null/missing should be unset")
	}
}

func strPtr(s string) *string { return &s }
