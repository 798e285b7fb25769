package utils

import (
	"encoding/json"
	"testing"
)

func TestParseAmount_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"Rs 20,000", "20000"},
		{"PKR -20,000", "-20000"},
		{"  rs. 1,234.50  ", "1234.5"},
		{float64(12.5), "12.5"},
		{json.Number("300"), "300"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%v) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseAmount(%v) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}
