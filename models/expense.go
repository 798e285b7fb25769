package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExpenseMonthStatus string

const (
	ExpenseMonthOpen   ExpenseMonthStatus = "open"
	ExpenseMonthClosed ExpenseMonthStatus = "closed"
)

// Entry descriptions written by salary posting.
const (
	ExpenseSalaries      = "Employee Salaries"
	ExpenseSalaryAdvance = "Employee Salary Advance"
)

type ExpenseMonth struct {
	ID         int                `gorm:"primary_key" json:"id"`
	Month      string             `gorm:"size:7;not null;uniqueIndex" json:"month"`
	Status     ExpenseMonthStatus `gorm:"size:10;not null;default:'open'" json:"status"`
	ClosedAt   *time.Time         `json:"closedAt"`
	ArchiveUri string             `gorm:"size:255" json:"archiveUri"`
	Entries    []ExpenseEntry     `gorm:"foreignKey:ExpenseMonthId" json:"entries"`
	Total      decimal.Decimal    `gorm:"-" json:"total"`
	CreatedAt  time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
}

type ExpenseEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ExpenseMonthId int             `gorm:"index;not null" json:"-"`
	Date           time.Time       `json:"date"`
	Description    string          `gorm:"size:255;not null" json:"description"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Reference      string          `gorm:"size:150" json:"reference"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type NewExpenseEntry struct {
	Date        FlexDate     `json:"date"`
	Description string       `json:"description"`
	Amount      LooseDecimal `json:"amount"`
	Reference   string       `json:"reference"`
}

type NewExpenseMonth struct {
	Month   string            `json:"month"`
	Entries []NewExpenseEntry `json:"entries"`
}

func (m *ExpenseMonth) IsClosed() bool {
	return m.Status == ExpenseMonthClosed
}

func (m *ExpenseMonth) computeTotal() {
	total := decimal.Zero
	for _, e := range m.Entries {
		total = total.Add(e.Amount)
	}
	m.Total = total
}

// ResolveExpenseMonth normalizes a month key, falling back to the current
// company month when month is empty.
func ResolveExpenseMonth(ctx context.Context, month string) (string, error) {
	if strings.TrimSpace(month) == "" {
		settings, err := GetSettings(ctx)
		if err != nil {
			return "", err
		}
		return settings.CompanyMonthKey(time.Now()), nil
	}
	key, err := utils.NormalizeMonthKey(month, time.Now().Year())
	if err != nil {
		return "", validationErrorf("%v", err)
	}
	return key, nil
}

// lockExpenseMonth returns the month row locked by tx, creating it open when missing.
func lockExpenseMonth(tx *gorm.DB, key string) (*ExpenseMonth, error) {
	var month ExpenseMonth
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("month = ?", key).Take(&month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ExpenseMonth{Month: key, Status: ExpenseMonthOpen}).Error; err != nil {
			return nil, err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("month = ?", key).Take(&month).Error
	}
	if err != nil {
		return nil, err
	}
	return &month, nil
}

func ensureWritable(month *ExpenseMonth) error {
	if month.IsClosed() && config.EnforceClosedExpenseMonths() {
		return fmt.Errorf("%w: expenses for %s", ErrMonthClosed, month.Month)
	}
	return nil
}

// addExpenseEntry appends one entry to an open month inside tx.
func addExpenseEntry(tx *gorm.DB, key string, entry ExpenseEntry) error {
	month, err := lockExpenseMonth(tx, key)
	if err != nil {
		return err
	}
	if err := ensureWritable(month); err != nil {
		return err
	}
	entry.ExpenseMonthId = month.ID
	return tx.Create(&entry).Error
}

// ReplaceExpenseEntries overwrites the month's entry list with input.Entries.
// Blank rows from the autosave form are dropped.
func ReplaceExpenseEntries(ctx context.Context, input *NewExpenseMonth) (*ExpenseMonth, error) {
	key, err := ResolveExpenseMonth(ctx, input.Month)
	if err != nil {
		return nil, err
	}
	entries := make([]ExpenseEntry, 0, len(input.Entries))
	for i, e := range input.Entries {
		description := strings.TrimSpace(e.Description)
		if description == "" && !e.Amount.Decimal.IsPositive() {
			continue
		}
		if description == "" {
			return nil, validationErrorf("entries[%d]: description is required", i)
		}
		if e.Amount.Decimal.IsNegative() {
			return nil, validationErrorf("entries[%d]: amount cannot be negative", i)
		}
		entries = append(entries, ExpenseEntry{
			Date:        e.Date.OrNow(),
			Description: description,
			Amount:      Round2(e.Amount.Decimal),
			Reference:   strings.TrimSpace(e.Reference),
		})
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		month, err := lockExpenseMonth(tx, key)
		if err != nil {
			return err
		}
		if err := ensureWritable(month); err != nil {
			return err
		}
		if err := tx.Where("expense_month_id = ?", month.ID).Delete(&ExpenseEntry{}).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].ExpenseMonthId = month.ID
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return tx.Model(month).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return GetExpenseMonth(ctx, key)
}

// GetExpenseMonth returns an empty open month when nothing was recorded yet.
func GetExpenseMonth(ctx context.Context, key string) (*ExpenseMonth, error) {
	var rows []ExpenseMonth
	err := config.GetDB().WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC, id ASC") }).
		Where("month = ?", key).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ExpenseMonth{Month: key, Status: ExpenseMonthOpen, Entries: []ExpenseEntry{}, Total: decimal.Zero}, nil
	}
	month := rows[0]
	if month.Entries == nil {
		month.Entries = []ExpenseEntry{}
	}
	month.computeTotal()
	return &month, nil
}

func ListExpenseMonths(ctx context.Context) ([]ExpenseMonth, error) {
	months := make([]ExpenseMonth, 0)
	if err := config.GetDB().WithContext(ctx).Order("month DESC").Find(&months).Error; err != nil {
		return nil, err
	}
	return months, nil
}

type CloseMonthResult struct {
	Month     *ExpenseMonth `json:"month"`
	NextMonth string        `json:"nextMonth"`
}

// CloseExpenseMonth marks the month closed. Closing twice is rejected.
func CloseExpenseMonth(ctx context.Context, key string) (*CloseMonthResult, error) {
	if _, err := utils.ParseMonthKey(key); err != nil {
		return nil, validationErrorf("%v", err)
	}
	next, err := utils.AddMonths(key, 1)
	if err != nil {
		return nil, validationErrorf("%v", err)
	}

	err = utils.WithLock(ctx, "expense_month:"+key, "expense", "CloseExpenseMonth", func() error {
		return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			month, err := lockExpenseMonth(tx, key)
			if err != nil {
				return err
			}
			if month.IsClosed() {
				return fmt.Errorf("%w: expense month %s is already closed", ErrAlreadyProcessed, key)
			}
			now := time.Now().UTC()
			if err := tx.Model(month).Updates(map[string]interface{}{
				"status":    ExpenseMonthClosed,
				"closed_at": now,
			}).Error; err != nil {
				return err
			}
			return PublishEvent(ctx, tx, EventExpenseMonthClosed, "expense_month", key, map[string]interface{}{
				"month":     key,
				"closedAt":  now,
				"nextMonth": next,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	month, err := GetExpenseMonth(ctx, key)
	if err != nil {
		return nil, err
	}
	return &CloseMonthResult{Month: month, NextMonth: next}, nil
}

func SetExpenseArchiveUri(ctx context.Context, key string, uri string) error {
	return config.GetDB().WithContext(ctx).Model(&ExpenseMonth{}).Where("month = ?", key).Update("archive_uri", uri).Error
}
