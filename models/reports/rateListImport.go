package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/xuri/excelize/v2"
)

var rateListHeadings = []string{"Type", "Gauge", "Size", "Price Per Kg"}

type RateImportResult struct {
	Imported     int      `json:"imported"`
	ItemsUpdated int      `json:"itemsUpdated"`
	Errors       []string `json:"errors"`
}

// ImportRateList reads the first sheet in the RateListWorkbook layout and
// upserts one rate per row. Bad rows are reported and skipped.
func ImportRateList(ctx context.Context, r io.Reader) (*RateImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open workbook: %v", models.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no rate rows found", models.ErrValidation)
	}

	result := &RateImportResult{Errors: make([]string, 0)}
	for idx, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		if len(row) < len(rateListHeadings) {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: expected %d columns", idx+2, len(rateListHeadings)))
			continue
		}
		price, err := utils.ParseAmount(row[3])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", idx+2, err))
			continue
		}
		saved, err := models.UpsertRate(ctx, &models.NewRate{
			Type:           row[0],
			Gauge:          row[1],
			Size:           row[2],
			PricePerWeight: models.NewLooseDecimal(price),
		})
		if errors.Is(err, models.ErrValidation) {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", idx+2, err))
			continue
		}
		if err != nil {
			return result, err
		}
		result.Imported++
		result.ItemsUpdated += saved.ItemsUpdated
	}
	return result, nil
}
