package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MonthKeyLayout = "2006-01"

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func MonthKeyOf(t time.Time) string {
	return MonthKey(t.Year(), t.Month())
}

// NormalizeMonthKey turns "10", "2024-10" or "October" into "YYYY-MM".
// year is used when month does not carry one.
func NormalizeMonthKey(month string, year int) (string, error) {
	m := strings.ToLower(strings.TrimSpace(month))
	if m == "" {
		return "", fmt.Errorf("month is required")
	}
	if t, err := time.Parse(MonthKeyLayout, m); err == nil {
		return MonthKeyOf(t), nil
	}
	if t, err := time.Parse("2006-1", m); err == nil {
		return MonthKeyOf(t), nil
	}
	if year <= 0 {
		return "", fmt.Errorf("year is required for month %q", month)
	}
	if n, err := strconv.Atoi(m); err == nil {
		if n < 1 || n > 12 {
			return "", fmt.Errorf("invalid month %q", month)
		}
		return MonthKey(year, time.Month(n)), nil
	}
	if mm, ok := monthNames[m]; ok {
		return MonthKey(year, mm), nil
	}
	return "", fmt.Errorf("invalid month %q", month)
}

// ParseMonthKey returns the first day of the month in UTC.
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse(MonthKeyLayout, strings.TrimSpace(key))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q", key)
	}
	return t, nil
}

func AddMonths(key string, n int) (string, error) {
	t, err := ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return MonthKeyOf(t.AddDate(0, n, 0)), nil
}

func MonthKeyYear(key string) int {
	t, err := ParseMonthKey(key)
	if err != nil {
		return 0
	}
	return t.Year()
}
