package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// Workbook is a rendered xlsx file ready to stream or upload.
type Workbook struct {
	Filename string
	Data     []byte
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// buildWorkbook writes a heading row followed by one row per record.
func buildWorkbook(filename string, headings []string, rows [][]interface{}) (*Workbook, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}
	if len(headings) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headings))
		_ = f.SetColWidth(sheetName, "A", last, 18)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &Workbook{Filename: filename, Data: buf.Bytes()}, nil
}

func ExpenseMonthWorkbook(ctx context.Context, key string) (*Workbook, error) {
	month, err := models.GetExpenseMonth(ctx, key)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(month.Entries)+1)
	for _, e := range month.Entries {
		rows = append(rows, []interface{}{e.Date.Format("2006-01-02"), e.Description, e.Reference, num(e.Amount)})
	}
	rows = append(rows, []interface{}{"", "Total", string(month.Status), num(month.Total)})
	return buildWorkbook(fmt.Sprintf("expenses_%s.xlsx", key), []string{"Date", "Description", "Reference", "Amount"}, rows)
}

func SalaryMonthWorkbook(ctx context.Context, month string, year int) (*Workbook, error) {
	records, err := models.GetSalaries(ctx, month, year)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(records))
	label := month
	for _, r := range records {
		name := ""
		if r.Employee != nil {
			name = r.Employee.Name
		}
		label = r.Month
		rows = append(rows, []interface{}{
			name, r.Month, num(r.TotalSalary), num(r.PaidAmount), num(r.AdvancePaid), num(r.BalanceRemaining), r.FullyPaid,
		})
	}
	if label == "" {
		label = fmt.Sprint(year)
	}
	return buildWorkbook(fmt.Sprintf("salaries_%s.xlsx", label),
		[]string{"Employee", "Month", "Total Salary", "Paid", "Advance", "Balance", "Fully Paid"}, rows)
}

func RateListWorkbook(ctx context.Context) (*Workbook, error) {
	rates, err := models.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(rates))
	for _, r := range rates {
		rows = append(rows, []interface{}{string(r.Type), r.Gauge, r.Size, num(r.PricePerWeight)})
	}
	return buildWorkbook("ratelist_"+time.Now().Format("20060102")+".xlsx", rateListHeadings, rows)
}

func SalesReportWorkbook(ctx context.Context, fromMonth string, toMonth string) (*Workbook, error) {
	totals, err := SalesReportHistory(ctx, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []interface{}{t.Month, t.InvoiceCount, num(t.Sales), num(t.Profit), num(t.Returns)})
	}
	return buildWorkbook("sales_report.xlsx", []string{"Month", "Invoices", "Sales", "Profit", "Returns"}, rows)
}
