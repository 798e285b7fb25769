package models

import (
	"bytes"
	"context"
	"encoding/json"
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

type SalaryRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	EmployeeId       int             `gorm:"not null;uniqueIndex:idx_salary_period,priority:1" json:"employeeId"`
	Employee         *Employee       `gorm:"foreignKey:EmployeeId" json:"employee,omitempty"`
	Month            string          `gorm:"size:7;not null;uniqueIndex:idx_salary_period,priority:2;index" json:"month"`
	Year             int             `gorm:"not null;uniqueIndex:idx_salary_period,priority:3" json:"year"`
	TotalSalary      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"totalSalary"`
	PaidAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paidAmount"`
	AdvancePaid      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"advancePaid"`
	BalanceRemaining decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balanceRemaining"`
	FullyPaid        bool            `gorm:"not null;default:false" json:"fullyPaid"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (r *SalaryRecord) recompute() {
	r.BalanceRemaining = maxZero(r.TotalSalary.Sub(r.PaidAmount).Sub(r.AdvancePaid))
	r.FullyPaid = !r.BalanceRemaining.IsPositive()
}

// MonthValue accepts "10", 10, "2024-10" or "October".
type MonthValue string

func (m *MonthValue) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*m = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*m = MonthValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return validationErrorf("invalid month %s", string(raw))
	}
	*m = MonthValue(n.String())
	return nil
}

type NewSalaryPayment struct {
	EmployeeId  int          `json:"employeeId" binding:"required"`
	Month       MonthValue   `json:"month"`
	Year        LooseDecimal `json:"year"`
	PaidAmount  LooseDecimal `json:"paidAmount"`
	AdvancePaid LooseDecimal `json:"advancePaid"`
	TotalSalary LooseDecimal `json:"totalSalary"`
	Date        FlexDate     `json:"date"`
}

// salaryPeriod resolves the canonical month key and its year.
func salaryPeriod(month MonthValue, year LooseDecimal) (string, int, error) {
	y := int(year.Decimal.IntPart())
	if !year.Valid || y <= 0 {
		y = time.Now().Year()
	}
	key, err := utils.NormalizeMonthKey(string(month), y)
	if err != nil {
		return "", 0, validationErrorf("%v", err)
	}
	return key, utils.MonthKeyYear(key), nil
}

type SalaryPostResult struct {
	Record  *SalaryRecord `json:"record"`
	Advance *SalaryRecord `json:"advanceRecord,omitempty"`
}

// lockSalaryRecord returns the (employee, month) row locked by tx, creating it
// with total when missing.
func lockSalaryRecord(tx *gorm.DB, employeeId int, key string, year int, total decimal.Decimal) (*SalaryRecord, error) {
	var record SalaryRecord
	find := func() error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("employee_id = ? AND month = ? AND year = ?", employeeId, key, year).
			Take(&record).Error
	}
	err := find()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := SalaryRecord{EmployeeId: employeeId, Month: key, Year: year, TotalSalary: total}
		fresh.recompute()
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
			return nil, err
		}
		err = find()
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func saveSalaryRecord(tx *gorm.DB, record *SalaryRecord) error {
	record.recompute()
	return tx.Model(record).
		Select("total_salary", "paid_amount", "advance_paid", "balance_remaining", "fully_paid", "updated_at").
		Updates(record).Error
}

// PostSalaryPayment is additive: paid accumulates on the month's record,
// an advance accumulates on the next month's record. Both are expensed in
// the month the cash went out.
func PostSalaryPayment(ctx context.Context, input *NewSalaryPayment) (*SalaryPostResult, error) {
	if input.EmployeeId <= 0 {
		return nil, validationErrorf("employeeId is required")
	}
	key, year, err := salaryPeriod(input.Month, input.Year)
	if err != nil {
		return nil, err
	}
	paid := input.PaidAmount.Decimal
	advance := input.AdvancePaid.Decimal
	if paid.IsNegative() || advance.IsNegative() {
		return nil, validationErrorf("paidAmount and advancePaid cannot be negative")
	}
	if input.TotalSalary.Valid && input.TotalSalary.Decimal.IsNegative() {
		return nil, validationErrorf("totalSalary cannot be negative")
	}
	nextKey, err := utils.AddMonths(key, 1)
	if err != nil {
		return nil, validationErrorf("%v", err)
	}
	date := input.Date.OrNow()

	var result SalaryPostResult
	lockKey := fmt.Sprintf("salary:%d:%s", input.EmployeeId, key)
	err = utils.WithLock(ctx, lockKey, "salary", "PostSalaryPayment", func() error {
		return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var employee Employee
			if err := tx.Where("id = ?", input.EmployeeId).Take(&employee).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFoundErrorf("employee %d", input.EmployeeId)
				}
				return err
			}

			if paid.IsPositive() || !advance.IsPositive() {
				record, err := lockSalaryRecord(tx, employee.ID, key, year, employee.MonthlySalary)
				if err != nil {
					return err
				}
				if input.TotalSalary.Valid {
					record.TotalSalary = input.TotalSalary.Decimal
				}
				record.PaidAmount = record.PaidAmount.Add(paid)
				if err := saveSalaryRecord(tx, record); err != nil {
					return err
				}
				record.Employee = &employee
				result.Record = record
			}

			if advance.IsPositive() {
				next, err := lockSalaryRecord(tx, employee.ID, nextKey, utils.MonthKeyYear(nextKey), employee.MonthlySalary)
				if err != nil {
					return err
				}
				next.AdvancePaid = next.AdvancePaid.Add(advance)
				if err := saveSalaryRecord(tx, next); err != nil {
					return err
				}
				next.Employee = &employee
				result.Advance = next
				if result.Record == nil {
					result.Record = next
				}
			}

			if paid.IsPositive() {
				if err := addExpenseEntry(tx, key, ExpenseEntry{
					Date:        date,
					Description: ExpenseSalaries,
					Amount:      Round2(paid),
					Reference:   fmt.Sprintf("%s (%s)", employee.Name, key),
				}); err != nil {
					return err
				}
			}
			if advance.IsPositive() {
				if err := addExpenseEntry(tx, key, ExpenseEntry{
					Date:        date,
					Description: ExpenseSalaryAdvance,
					Amount:      Round2(advance),
					Reference:   fmt.Sprintf("%s (advance for %s)", employee.Name, nextKey),
				}); err != nil {
					return err
				}
			}

			return PublishEvent(ctx, tx, EventSalaryPosted, "employee", fmt.Sprint(employee.ID), map[string]interface{}{
				"employeeId":  employee.ID,
				"month":       key,
				"paidAmount":  paid,
				"advancePaid": advance,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SalaryAdjustment sets figures on a record directly. Unset fields keep
// their current value and nothing is expensed.
type SalaryAdjustment struct {
	EmployeeId  int          `json:"employeeId" binding:"required"`
	Month       MonthValue   `json:"month"`
	Year        LooseDecimal `json:"year"`
	TotalSalary LooseDecimal `json:"totalSalary"`
	PaidAmount  LooseDecimal `json:"paidAmount"`
	AdvancePaid LooseDecimal `json:"advancePaid"`
}

func AdjustSalary(ctx context.Context, input *SalaryAdjustment) (*SalaryRecord, error) {
	if input.EmployeeId <= 0 {
		return nil, validationErrorf("employeeId is required")
	}
	key, year, err := salaryPeriod(input.Month, input.Year)
	if err != nil {
		return nil, err
	}
	for _, v := range []LooseDecimal{input.TotalSalary, input.PaidAmount, input.AdvancePaid} {
		if v.Decimal.IsNegative() {
			return nil, validationErrorf("salary figures cannot be negative")
		}
	}

	var record *SalaryRecord
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee Employee
		if err := tx.Where("id = ?", input.EmployeeId).Take(&employee).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErrorf("employee %d", input.EmployeeId)
			}
			return err
		}
		record, err = lockSalaryRecord(tx, employee.ID, key, year, employee.MonthlySalary)
		if err != nil {
			return err
		}
		if input.TotalSalary.Valid {
			record.TotalSalary = input.TotalSalary.Decimal
		}
		if input.PaidAmount.Valid {
			record.PaidAmount = input.PaidAmount.Decimal
		}
		if input.AdvancePaid.Valid {
			record.AdvancePaid = input.AdvancePaid.Decimal
		}
		record.Employee = &employee
		return saveSalaryRecord(tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetSalaries lists records for a month, or for the whole year when month is empty.
func GetSalaries(ctx context.Context, month string, year int) ([]SalaryRecord, error) {
	db := config.GetDB().WithContext(ctx).Preload("Employee")
	if strings.TrimSpace(month) != "" {
		key, y, err := salaryPeriod(MonthValue(month), NewLooseDecimal(decimal.NewFromInt(int64(year))))
		if err != nil {
			return nil, err
		}
		db = db.Where("month = ? AND year = ?", key, y)
	} else if year > 0 {
		db = db.Where("year = ?", year)
	}
	records := make([]SalaryRecord, 0)
	if err := db.Order("month ASC, employee_id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
