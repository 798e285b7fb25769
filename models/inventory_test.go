package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/pipeworks_backend/models"
)

func TestAddStockMergesByIdentityKey(t *testing.T) {
	ctx := setupTestDB(t)

	first, err := models.AddStock(ctx, &models.NewStock{
		Name:           "  Round Pipe ",
		Type:           "Pipe",
		Size:           "1 inch",
		Color:          "Black",
		Weight:         loose("50"),
		Quantity:       loose("10"),
		PricePerWeight: loose("100"),
	})
	if err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if first.Merged {
		t.Fatalf("first insert reported as merged")
	}
	if first.Item.IdentityKey != "round pipe_1 inch_black" {
		t.Fatalf("unexpected identity key %q", first.Item.IdentityKey)
	}
	if first.Item.Code != "p001" {
		t.Fatalf("expected code p001, got %q", first.Item.Code)
	}
	requireDec(t, "pricePerUnit", *first.Item.PricePerUnit, "500")

	second, err := models.AddStock(ctx, &models.NewStock{
		Name:     "round pipe",
		Type:     "pipe",
		Size:     "1 INCH",
		Color:    "black",
		Weight:   loose("20"),
		Quantity: loose("4"),
	})
	if err != nil {
		t.Fatalf("AddStock again: %v", err)
	}
	if !second.Merged || second.Item.ID != first.Item.ID {
		t.Fatalf("expected merge into %d, got %+v", first.Item.ID, second)
	}

	items, err := models.ListItems(ctx, models.ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
	if items[0].Quantity != 14 {
		t.Fatalf("expected quantity 14, got %d", items[0].Quantity)
	}
	requireDec(t, "weight", items[0].Weight, "70")
	requireDec(t, "pricePerUnit", *items[0].PricePerUnit, "500")
}

func TestAddStockUnnamedPillarsGetSequentialCodes(t *testing.T) {
	ctx := setupTestDB(t)

	a := mustAddStock(t, ctx, models.NewStock{Type: "pillar", Size: "6ft", Quantity: loose("3")})
	b := mustAddStock(t, ctx, models.NewStock{Type: "pillar", Size: "8ft", Quantity: loose("2")})

	if a.Code != "pl001" || a.Name != "pl001" {
		t.Fatalf("expected pl001, got code=%q name=%q", a.Code, a.Name)
	}
	if b.Code != "pl002" {
		t.Fatalf("expected pl002, got %q", b.Code)
	}
}

func TestAddStockValidation(t *testing.T) {
	ctx := setupTestDB(t)

	cases := map[string]models.NewStock{
		"unknown type":      {Name: "x", Type: "tube", Quantity: loose("1")},
		"hardware no name":  {Type: "hardware", Quantity: loose("1")},
		"fractional qty":    {Name: "x", Type: "hardware", Quantity: loose("1.5")},
		"negative quantity": {Name: "x", Type: "hardware", Quantity: loose("-1")},
	}
	for name, input := range cases {
		input := input
		if _, err := models.AddStock(ctx, &input); !errors.Is(err, models.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestAddStockUsesRateList(t *testing.T) {
	ctx := setupTestDB(t)

	if _, err := models.UpsertRate(ctx, &models.NewRate{Type: "pipe", Gauge: "16", Size: "2 inch", PricePerWeight: loose("250")}); err != nil {
		t.Fatalf("UpsertRate: %v", err)
	}
	item := mustAddStock(t, ctx, models.NewStock{
		Name:     "square pipe",
		Type:     "pipe",
		Gauge:    "16",
		Size:     "2 inch",
		Weight:   loose("30"),
		Quantity: loose("6"),
	})
	if item.PricePerWeight == nil {
		t.Fatalf("expected price per weight from the rate list")
	}
	requireDec(t, "pricePerWeight", *item.PricePerWeight, "250")
	requireDec(t, "pricePerUnit", *item.PricePerUnit, "1250")

	res, err := models.UpsertRate(ctx, &models.NewRate{Type: "pipe", Gauge: "16", Size: "2 inch", PricePerWeight: loose("300")})
	if err != nil {
		t.Fatalf("UpsertRate update: %v", err)
	}
	if res.ItemsUpdated != 1 {
		t.Fatalf("expected 1 item repriced, got %d", res.ItemsUpdated)
	}
	repriced := mustGetItem(t, ctx, item.ID)
	requireDec(t, "pricePerUnit after rate change", *repriced.PricePerUnit, "1500")
}

func TestDeductStockClampsAtZero(t *testing.T) {
	ctx := setupTestDB(t)

	item := mustAddStock(t, ctx, models.NewStock{
		Name:           "angle",
		Type:           "hardware",
		Weight:         loose("10"),
		Quantity:       loose("5"),
		PricePerWeight: loose("20"),
	})

	res, err := models.DeductStock(ctx, &models.DeductStockInput{Name: "ANGLE", Quantity: loose("2"), Weight: loose("4")})
	if err != nil {
		t.Fatalf("DeductStock: %v", err)
	}
	if res.Partial() {
		t.Fatalf("unexpected shortfall %+v", res.Shortfall)
	}
	if res.Item.Quantity != 3 {
		t.Fatalf("expected 3 left, got %d", res.Item.Quantity)
	}
	requireDec(t, "pricePerUnit", *res.Item.PricePerUnit, "40")

	res, err = models.DeductStock(ctx, &models.DeductStockInput{IdentityKey: item.IdentityKey, Quantity: loose("5"), Weight: loose("10")})
	if err != nil {
		t.Fatalf("DeductStock overdraw: %v", err)
	}
	if !res.Partial() || res.Shortfall.Quantity != 2 {
		t.Fatalf("expected shortfall of 2, got %+v", res.Shortfall)
	}
	requireDec(t, "weight shortfall", res.Shortfall.Weight, "4")

	stored := mustGetItem(t, ctx, item.ID)
	if stored.Quantity != 0 || !stored.Weight.IsZero() {
		t.Fatalf("expected empty stock, got qty=%d weight=%s", stored.Quantity, stored.Weight)
	}
}

func TestDeductStockUnknownItem(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.DeductStock(ctx, &models.DeductStockInput{Name: "ghost", Quantity: loose("1")})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
