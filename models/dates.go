package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// FlexDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
type FlexDate struct {
	Time  time.Time
	Valid bool
}

func (d *FlexDate) UnmarshalJSON(b []byte) error {
	*d = FlexDate{}
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return validationErrorf("invalid date %s", string(raw))
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	if !t.IsZero() {
		*d = FlexDate{Time: t, Valid: true}
	}
	return nil
}

// ParseDate returns the zero time for an empty string.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validationErrorf("invalid date %q", s)
}

func (d FlexDate) OrNow() time.Time {
	if d.Valid {
		return d.Time
	}
	return time.Now().UTC()
}
