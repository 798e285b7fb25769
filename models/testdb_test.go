package models_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/shopspring/decimal"
)

// setupTestDB installs a fresh migrated SQLite database as the global
// connection. Redis stays disconnected so caches and locks are no-ops.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeworks.db")
	conn, err := config.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	config.SetDB(conn)
	models.MigrateTable()
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})
	return context.Background()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func loose(s string) models.LooseDecimal {
	return models.NewLooseDecimal(dec(s))
}

// looseJSON decodes raw the way a request body would.
func looseJSON(t *testing.T, raw string) models.LooseDecimal {
	t.Helper()
	var l models.LooseDecimal
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return l
}

func requireDec(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", what, want, got)
	}
}

func mustAddStock(t *testing.T, ctx context.Context, input models.NewStock) *models.InventoryItem {
	t.Helper()
	res, err := models.AddStock(ctx, &input)
	if err != nil {
		t.Fatalf("AddStock(%s): %v", input.Name, err)
	}
	return res.Item
}

func mustGetItem(t *testing.T, ctx context.Context, id int) *models.InventoryItem {
	t.Helper()
	item, err := models.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem(%d): %v", id, err)
	}
	return item
}

// hardware is a plain named stock line with a unit price.
func hardware(name string, qty string, price string) models.NewStock {
	return models.NewStock{
		Name:         name,
		Type:         "hardware",
		Quantity:     loose(qty),
		PricePerUnit: loose(price),
	}
}

func saleLine(name string, qty string, rate string) models.NewQuotationItem {
	return models.NewQuotationItem{ItemName: name, Qty: loose(qty), Rate: loose(rate)}
}

func mustCreateQuotation(t *testing.T, ctx context.Context, input models.NewQuotation) *models.Quotation {
	t.Helper()
	q, err := models.CreateQuotation(ctx, &input)
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	return q
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%s): %v", s, err)
	}
	return d
}
