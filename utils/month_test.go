package utils

import "testing"

func TestNormalizeMonthKey(t *testing.T) {
	cases := []struct {
		month string
		year  int
		want  string
	}{
		{"10", 2024, "2024-10"},
		{"3", 2025, "2025-03"},
		{"2024-10", 0, "2024-10"},
		{"2024-1", 0, "2024-01"},
		{"October", 2024, "2024-10"},
		{" oct ", 2024, "2024-10"},
		{"Sept", 2023, "2023-09"},
	}
	for _, tc := range cases {
		got, err := NormalizeMonthKey(tc.month, tc.year)
		if err != nil {
			t.Fatalf("NormalizeMonthKey(%q, %d) error: %v", tc.month, tc.year, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeMonthKey(%q, %d) expected %s, got %s", tc.month, tc.year, tc.want, got)
		}
	}
}

func TestNormalizeMonthKey_Invalid(t *testing.T) {
	cases := []struct {
		month string
		year  int
	}{
		{"", 2024},
		{"13", 2024},
		{"0", 2024},
		{"smarch", 2024},
		{"10", 0},
	}
	for _, tc := range cases {
		if _, err := NormalizeMonthKey(tc.month, tc.year); err == nil {
			t.Fatalf("NormalizeMonthKey(%q, %d) expected error", tc.month, tc.year)
		}
	}
}

func TestAddMonths_CrossesYear(t *testing.T) {
	got, err := AddMonths("2024-12", 1)
	if err != nil {
		t.Fatalf("AddMonths error: %v", err)
	}
	if got != "2025-01" {
		t.Fatalf("expected 2025-01, got %s", got)
	}
}
