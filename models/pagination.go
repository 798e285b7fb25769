package models

import (
	"encoding/base64"
	"strconv"
	"strings"
)

const maxPageSize = 200

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// DecodeCursor returns the row id a cursor points at; an empty cursor is 0.
func DecodeCursor(cursor string) (int, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, nil
	}
	b, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, validationErrorf("invalid cursor")
	}
	id, err := strconv.Atoi(string(b))
	if err != nil || id <= 0 {
		return 0, validationErrorf("invalid cursor")
	}
	return id, nil
}

func EncodeCursor(id int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(id)))
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
