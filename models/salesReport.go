package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesReportTotal aggregates sales per company month.
type SalesReportTotal struct {
	Month        string          `gorm:"primaryKey;size:7" json:"month"`
	Sales        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sales"`
	Profit       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"profit"`
	InvoiceCount int             `gorm:"not null;default:0" json:"invoiceCount"`
	Returns      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"returns"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type reportDelta struct {
	Sales        decimal.Decimal
	Profit       decimal.Decimal
	InvoiceCount int
	Returns      decimal.Decimal
}

// adjustSalesReport applies delta to the month row inside tx.
func adjustSalesReport(tx *gorm.DB, month string, delta reportDelta) error {
	var row SalesReportTotal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("month = ?", month).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&SalesReportTotal{Month: month}).Error; err != nil {
			return err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("month = ?", month).Take(&row).Error
	}
	if err != nil {
		return err
	}
	row.Sales = row.Sales.Add(delta.Sales)
	row.Profit = row.Profit.Add(delta.Profit)
	row.InvoiceCount += delta.InvoiceCount
	row.Returns = row.Returns.Add(delta.Returns)
	return tx.Model(&row).Select("sales", "profit", "invoice_count", "returns", "updated_at").Updates(&row).Error
}

// GetSalesReport returns the totals for a month; months without sales are zero.
func GetSalesReport(ctx context.Context, month string) (*SalesReportTotal, error) {
	var rows []SalesReportTotal
	if err := config.GetDB().WithContext(ctx).Where("month = ?", month).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &SalesReportTotal{Month: month}, nil
	}
	return &rows[0], nil
}

func ListSalesReports(ctx context.Context, fromMonth string, toMonth string) ([]SalesReportTotal, error) {
	db := config.GetDB().WithContext(ctx)
	if fromMonth != "" {
		db = db.Where("month >= ?", fromMonth)
	}
	if toMonth != "" {
		db = db.Where("month <= ?", toMonth)
	}
	rows := make([]SalesReportTotal, 0)
	if err := db.Order("month ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
