package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Employee struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Phone         string          `gorm:"size:30" json:"phone"`
	MonthlySalary decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"monthlySalary"`
	IsActive      *bool           `gorm:"not null;default:true" json:"isActive"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewEmployee struct {
	Name          string       `json:"name" binding:"required"`
	Phone         string       `json:"phone"`
	MonthlySalary LooseDecimal `json:"monthlySalary"`
	IsActive      *bool        `json:"isActive"`
}

// validate input for both create & update, phone is stored as E.164
func (input *NewEmployee) validate() (string, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return "", validationErrorf("name is required")
	}
	if input.MonthlySalary.Decimal.IsNegative() {
		return "", validationErrorf("monthlySalary cannot be negative")
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return "", nil
	}
	normalized, err := utils.NormalizePhoneNumber(phone, utils.PhoneRegion())
	if err != nil {
		return "", validationErrorf("phone: %v", err)
	}
	return normalized, nil
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	phone, err := input.validate()
	if err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	employee := Employee{
		Name:          input.Name,
		Phone:         phone,
		MonthlySalary: input.MonthlySalary.Decimal,
		IsActive:      &active,
	}
	if err := config.GetDB().WithContext(ctx).Create(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func UpdateEmployee(ctx context.Context, id int, input *NewEmployee) (*Employee, error) {
	phone, err := input.validate()
	if err != nil {
		return nil, err
	}
	employee, err := GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":          input.Name,
		"Phone":         phone,
		"MonthlySalary": employee.MonthlySalary,
	}
	if input.MonthlySalary.Valid {
		updates["MonthlySalary"] = input.MonthlySalary.Decimal
	}
	if input.IsActive != nil {
		updates["IsActive"] = *input.IsActive
	}
	if err := config.GetDB().WithContext(ctx).Model(employee).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetEmployee(ctx, id)
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	var employee Employee
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&employee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("employee %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	db := config.GetDB().WithContext(ctx)
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	employees := make([]Employee, 0)
	if err := db.Order("name ASC").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}
