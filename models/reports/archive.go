package reports

import (
	"context"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/utils"
)

// ArchiveExpenseMonth uploads the month's ledger workbook to GCS and records
// the object URI on the month. It is a no-op without GCS_BUCKET.
func ArchiveExpenseMonth(ctx context.Context, key string) (string, error) {
	if !utils.ArchiveEnabled() {
		return "", nil
	}
	wb, err := ExpenseMonthWorkbook(ctx, key)
	if err != nil {
		return "", err
	}
	uri, err := utils.UploadWorkbookToGCS(ctx, "expenses/"+wb.Filename, wb.Data)
	if err != nil {
		config.LogError(config.GetLogger(), "reports", "ArchiveExpenseMonth", "upload", key, err)
		return "", err
	}
	if err := models.SetExpenseArchiveUri(ctx, key, uri); err != nil {
		return "", err
	}
	return uri, nil
}
