package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mmdatafocus/pipeworks_backend/models"
)

func TestProcessReturnClosesInvoiceOnce(t *testing.T) {
	ctx := setupTestDB(t)
	bolt := mustAddStock(t, ctx, hardware("bolt", "10", "30"))
	q := mustCreateQuotation(t, ctx, models.NewQuotation{Items: []models.NewQuotationItem{saleLine("bolt", "4", "50")}})

	record, err := models.ProcessReturn(ctx, q.QuotationId, "BOLT", loose("2"))
	if err != nil {
		t.Fatalf("ProcessReturn: %v", err)
	}
	if record.ReturnId != "RET-0001" || record.ReferenceInvoice != q.QuotationId || record.Kind != models.ReturnKindInvoice {
		t.Fatalf("unexpected return record %+v", record)
	}
	requireDec(t, "refund", record.TotalRefund, "100")

	if got := mustGetItem(t, ctx, bolt.ID).Quantity; got != 8 {
		t.Fatalf("expected 8 bolts after return, got %d", got)
	}
	stored, err := models.GetQuotation(ctx, q.QuotationId)
	if err != nil {
		t.Fatalf("GetQuotation: %v", err)
	}
	if stored.Status != models.QuotationStatusReturned {
		t.Fatalf("expected returned status, got %s", stored.Status)
	}
	if stored.Items[0].ReturnedQty != 2 {
		t.Fatalf("expected returnedQty 2, got %d", stored.Items[0].ReturnedQty)
	}
	requireDec(t, "grandTotal is frozen", stored.GrandTotal, "200")

	report, err := models.GetSalesReport(ctx, q.ReportMonth)
	if err != nil {
		t.Fatalf("GetSalesReport: %v", err)
	}
	requireDec(t, "report sales", report.Sales, "100")
	requireDec(t, "report profit", report.Profit, "40")
	requireDec(t, "report returns", report.Returns, "100")

	if _, err := models.ProcessReturn(ctx, q.QuotationId, "bolt", loose("1")); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("expected second return to be rejected, got %v", err)
	}
	if _, err := models.CreateReturn(ctx, &models.NewReturn{
		InvoiceId: q.QuotationId,
		Items:     models.ReturnItems{{ItemName: "bolt", Qty: loose("1")}},
	}); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("expected itemized return on returned invoice to be rejected, got %v", err)
	}
	if _, err := models.AddPayment(ctx, q.QuotationId, &models.NewPayment{Amount: loose("10")}); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("expected payment on returned invoice to be rejected, got %v", err)
	}
	if got := mustGetItem(t, ctx, bolt.ID).Quantity; got != 8 {
		t.Fatalf("rejected returns changed stock to %d", got)
	}
}

func TestProcessReturnValidation(t *testing.T) {
	ctx := setupTestDB(t)
	mustAddStock(t, ctx, hardware("bolt", "10", "30"))
	q := mustCreateQuotation(t, ctx, models.NewQuotation{Items: []models.NewQuotationItem{saleLine("bolt", "4", "50")}})

	if _, err := models.ProcessReturn(ctx, q.QuotationId, "nut", loose("1")); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected unknown item to be rejected, got %v", err)
	}
	if _, err := models.ProcessReturn(ctx, q.QuotationId, "bolt", loose("5")); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected over-return to be rejected, got %v", err)
	}
	if _, err := models.ProcessReturn(ctx, "INV-0999", "bolt", loose("1")); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, err := models.GetQuotation(ctx, q.QuotationId)
	if err != nil {
		t.Fatalf("GetQuotation: %v", err)
	}
	if stored.Status != models.QuotationStatusActive {
		t.Fatalf("failed returns flipped status to %s", stored.Status)
	}
}

func TestCreateReturnCapsAtSoldQuantity(t *testing.T) {
	ctx := setupTestDB(t)
	bolt := mustAddStock(t, ctx, hardware("bolt", "10", "30"))
	nut := mustAddStock(t, ctx, hardware("nut", "10", "5"))
	q := mustCreateQuotation(t, ctx, models.NewQuotation{Items: []models.NewQuotationItem{
		saleLine("bolt", "4", "50"),
		saleLine("nut", "3", "10"),
	}})

	record, err := models.CreateReturn(ctx, &models.NewReturn{
		InvoiceId: q.QuotationId,
		Items: models.ReturnItems{
			{ItemName: "bolt", Qty: loose("1")},
			{Name: "nut", Qty: loose("3")},
		},
		Reason: "damaged",
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if len(record.Items) != 2 || record.Kind != models.ReturnKindItems {
		t.Fatalf("unexpected return record %+v", record)
	}
	requireDec(t, "refund", record.TotalRefund, "80")

	if _, err := models.CreateReturn(ctx, &models.NewReturn{
		InvoiceId: q.QuotationId,
		Items:     models.ReturnItems{{ItemName: "nut", Qty: loose("1")}},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected nut over-return to be rejected, got %v", err)
	}
	if _, err := models.CreateReturn(ctx, &models.NewReturn{
		InvoiceId: q.QuotationId,
		Items: models.ReturnItems{
			{ItemName: "bolt", Qty: loose("2")},
			{ItemName: "bolt", Qty: loose("2")},
		},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected aggregated over-return to be rejected, got %v", err)
	}

	second, err := models.CreateReturn(ctx, &models.NewReturn{
		InvoiceId: q.QuotationId,
		Items:     models.ReturnItems{{ItemName: "bolt", Qty: loose("3")}},
	})
	if err != nil {
		t.Fatalf("CreateReturn remaining bolts: %v", err)
	}
	if second.ReturnId != "RET-0002" {
		t.Fatalf("expected RET-0002, got %s", second.ReturnId)
	}

	if got := mustGetItem(t, ctx, bolt.ID).Quantity; got != 10 {
		t.Fatalf("expected all bolts back, got %d", got)
	}
	if got := mustGetItem(t, ctx, nut.ID).Quantity; got != 10 {
		t.Fatalf("expected all nuts back, got %d", got)
	}
	stored, err := models.GetQuotation(ctx, q.QuotationId)
	if err != nil {
		t.Fatalf("GetQuotation: %v", err)
	}
	if stored.Status != models.QuotationStatusActive {
		t.Fatalf("itemized returns changed status to %s", stored.Status)
	}

	records, err := models.ListReturns(ctx, q.QuotationId)
	if err != nil {
		t.Fatalf("ListReturns: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(records))
	}
	fetched, err := models.GetReturn(ctx, "ret-0001")
	if err != nil {
		t.Fatalf("GetReturn: %v", err)
	}
	if fetched.Reason != "damaged" || len(fetched.Items) != 2 {
		t.Fatalf("unexpected fetched return %+v", fetched)
	}
}

func TestReturnRebuildsDeletedItem(t *testing.T) {
	ctx := setupTestDB(t)
	widget := mustAddStock(t, ctx, hardware("widget", "5", "10"))
	q := mustCreateQuotation(t, ctx, models.NewQuotation{Items: []models.NewQuotationItem{saleLine("widget", "2", "15")}})

	if _, err := models.DeleteItem(ctx, widget.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := models.ProcessReturn(ctx, q.QuotationId, "widget", loose("2")); err != nil {
		t.Fatalf("ProcessReturn: %v", err)
	}

	items, err := models.ListItems(ctx, models.ItemFilter{Search: "widget"})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a placeholder record, got %d items", len(items))
	}
	if items[0].ID == widget.ID || items[0].Quantity != 2 || items[0].Type != models.ItemTypeHardware {
		t.Fatalf("unexpected placeholder %+v", items[0])
	}
}

func TestNewReturnDecoding(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		itemized bool
		items    int
	}{
		{"simple", `{"invoiceId":"INV-0001","itemName":"bolt","qty":"2"}`, false, 0},
		{"single object", `{"invoiceId":"INV-0001","itemReturned":{"itemName":"bolt","qty":2}}`, true, 1},
		{"array", `{"invoiceId":"INV-0001","itemsReturned":[{"name":"bolt","qty":1},{"itemName":"nut","qty":"3"}]}`, true, 2},
		{"both keys", `{"invoiceId":"INV-0001","itemReturned":{"itemName":"bolt","qty":1},"itemsReturned":[{"itemName":"nut","qty":1}]}`, true, 2},
	}
	for _, tc := range cases {
		var input models.NewReturn
		if err := json.Unmarshal([]byte(tc.body), &input); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if input.InvoiceId != "INV-0001" {
			t.Fatalf("%s: invoiceId %q", tc.name, input.InvoiceId)
		}
		if input.Itemized() != tc.itemized || len(input.Items) != tc.items {
			t.Fatalf("%s: itemized=%v items=%d", tc.name, input.Itemized(), len(input.Items))
		}
	}

	var simple models.NewReturn
	_ = json.Unmarshal([]byte(`{"invoiceId":"INV-0001","itemName":"bolt","qty":"2"}`), &simple)
	requireDec(t, "simple qty", simple.Qty.Decimal, "2")
}
