package reports_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	conn, err := config.OpenSQLite(filepath.Join(t.TempDir(), "reports.db"))
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

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	return rows
}

func rateSheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestImportRateListSkipsBadRows(t *testing.T) {
	ctx := setupTestDB(t)
	sheet := rateSheet(t, [][]interface{}{
		{"Type", "Gauge", "Size", "Price Per Kg"},
		{"Pipe", "16", "1 inch", "250"},
		{"plastic", "", "", "10"},
		{"pillar", "", "6x6", "abc"},
		{},
		{"pipe", "18", "2 inch", "1,200.50"},
	})

	result, err := reports.ImportRateList(ctx, sheet)
	if err != nil {
		t.Fatalf("ImportRateList: %v", err)
	}
	if result.Imported != 2 || len(result.Errors) != 2 {
		t.Fatalf("expected 2 imported and 2 errors, got %+v", result)
	}

	wb, err := reports.RateListWorkbook(ctx)
	if err != nil {
		t.Fatalf("RateListWorkbook: %v", err)
	}
	rows := readRows(t, wb.Data)
	if len(rows) != 3 {
		t.Fatalf("expected heading plus 2 rates, got %v", rows)
	}
	found := false
	for _, r := range rows[1:] {
		if r[0] == "pipe" && r[1] == "18" && r[3] == "1200.5" {
			found = true
		}
	}
	if !found {
		t.Fatalf("imported 1,200.50 rate missing from export: %v", rows)
	}
}

func TestImportRateListRejectsNonWorkbook(t *testing.T) {
	ctx := setupTestDB(t)
	if _, err := reports.ImportRateList(ctx, bytes.NewBufferString("type,gauge\npipe,16")); err == nil {
		t.Fatalf("expected an error for a csv upload")
	}
}

func TestExpenseMonthWorkbookEndsWithTotal(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.ReplaceExpenseEntries(ctx, &models.NewExpenseMonth{
		Month: "2024-10",
		Entries: []models.NewExpenseEntry{
			{Description: "Rent", Amount: models.NewLooseDecimal(decimal.NewFromInt(1000))},
			{Description: "Tea", Amount: models.NewLooseDecimal(decimal.RequireFromString("250.5"))},
		},
	})
	if err != nil {
		t.Fatalf("ReplaceExpenseEntries: %v", err)
	}

	wb, err := reports.ExpenseMonthWorkbook(ctx, "2024-10")
	if err != nil {
		t.Fatalf("ExpenseMonthWorkbook: %v", err)
	}
	if wb.Filename != "expenses_2024-10.xlsx" {
		t.Fatalf("unexpected filename %s", wb.Filename)
	}
	rows := readRows(t, wb.Data)
	last := rows[len(rows)-1]
	if len(rows) != 4 || last[1] != "Total" || last[2] != "open" || last[3] != "1250.5" {
		t.Fatalf("unexpected workbook rows %v", rows)
	}
}

func TestSalesReportHistoryWithoutRedis(t *testing.T) {
	ctx := setupTestDB(t)
	t.Setenv("ENABLE_REPORT_CACHE", "true")
	if _, err := models.AddStock(ctx, &models.NewStock{
		Name:         "socket",
		Type:         "hardware",
		Quantity:     models.NewLooseDecimal(decimal.NewFromInt(3)),
		PricePerUnit: models.NewLooseDecimal(decimal.NewFromInt(10)),
	}); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if _, err := models.CreateQuotation(ctx, &models.NewQuotation{Items: []models.NewQuotationItem{{
		ItemName: "socket",
		Qty:      models.NewLooseDecimal(decimal.NewFromInt(2)),
		Rate:     models.NewLooseDecimal(decimal.NewFromInt(15)),
	}}}); err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	totals, err := reports.SalesReportHistory(ctx, "", "")
	if err != nil {
		t.Fatalf("SalesReportHistory: %v", err)
	}
	if len(totals) != 1 || !totals[0].Sales.Equal(decimal.NewFromInt(30)) || totals[0].InvoiceCount != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
