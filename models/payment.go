package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type QuotationPayment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	QuotationRefId int             `gorm:"index;not null" json:"-"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Date           time.Time       `json:"date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type NewPayment struct {
	Amount LooseDecimal `json:"amount"`
	Date   FlexDate     `json:"date"`
}

func (input NewPayment) validate() error {
	if !input.Amount.Valid || !input.Amount.Decimal.IsPositive() || !input.Amount.IsWhole() {
		return ErrInvalidAmount
	}
	return nil
}

// AddPayment appends a payment under a row lock on the quotation. The amount
// may not exceed the open balance unless ENFORCE_PAYMENT_BALANCE is off.
func AddPayment(ctx context.Context, ref string, input *NewPayment) (*Quotation, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var quotation *Quotation
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		quotation, err = lockQuotation(tx, ref)
		if err != nil {
			return err
		}
		if quotation.Status != QuotationStatusActive {
			return fmt.Errorf("%w: quotation %s has been returned", ErrAlreadyProcessed, quotation.QuotationId)
		}
		if config.EnforcePaymentBalance() && input.Amount.Decimal.GreaterThan(quotation.Balance) {
			return validationErrorf("amount %s exceeds balance %s", input.Amount.Decimal, quotation.Balance)
		}

		payment := QuotationPayment{
			QuotationRefId: quotation.ID,
			Amount:         input.Amount.Decimal,
			Date:           input.Date.OrNow(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		quotation.Payments = append(quotation.Payments, payment)
		quotation.computeTotals()

		return PublishEvent(ctx, tx, EventPaymentAdded, "quotation", quotation.QuotationId, map[string]interface{}{
			"quotationId":   quotation.QuotationId,
			"paymentId":     payment.ID,
			"amount":        payment.Amount,
			"totalReceived": quotation.TotalReceived,
			"balance":       quotation.Balance,
		})
	})
	if err != nil {
		return nil, err
	}
	return quotation, nil
}
