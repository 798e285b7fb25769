package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotationStatus string

const (
	QuotationStatusActive   QuotationStatus = "active"
	QuotationStatusReturned QuotationStatus = "returned"
)

type RateUnit string

const (
	RateUnitPiece RateUnit = "unit"
	RateUnitKg    RateUnit = "kg"
)

type Quotation struct {
	ID             int                `gorm:"primary_key" json:"id"`
	QuotationId    string             `gorm:"size:20;not null;uniqueIndex" json:"quotationId"`
	CustomerName   string             `gorm:"size:150" json:"customerName"`
	CustomerPhone  string             `gorm:"size:30" json:"customerPhone"`
	Items          []QuotationItem    `gorm:"foreignKey:QuotationRefId" json:"items"`
	Discount       decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Loading        decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"loading"`
	Total          decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	GrandTotal     decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"grandTotal"`
	Profit         decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"profit"`
	Status         QuotationStatus    `gorm:"size:20;not null;default:'active';index" json:"status"`
	Date           time.Time          `gorm:"index" json:"date"`
	ReportMonth    string             `gorm:"size:7;index" json:"reportMonth"`
	ReportedSales  decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"-"`
	ReportedProfit decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"-"`
	Payments       []QuotationPayment `gorm:"foreignKey:QuotationRefId" json:"payments"`
	TotalReceived  decimal.Decimal    `gorm:"-" json:"totalReceived"`
	Balance        decimal.Decimal    `gorm:"-" json:"balance"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
}

// QuotationItem is the frozen snapshot of a sold line. Only ReturnedQty moves
// after creation.
type QuotationItem struct {
	ID             int              `gorm:"primary_key" json:"id"`
	QuotationRefId int              `gorm:"index;not null" json:"-"`
	ItemName       string           `gorm:"size:150;not null" json:"itemName"`
	ItemType       ItemType         `gorm:"size:20" json:"itemType"`
	Size           string           `gorm:"size:50" json:"size"`
	Color          string           `gorm:"size:50" json:"color"`
	IdentityKey    string           `gorm:"size:255;index" json:"identityKey"`
	Quantity       int              `gorm:"not null" json:"qty"`
	Weight         decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"weight"`
	Rate           decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"rate"`
	RateUnit       RateUnit         `gorm:"size:10;not null;default:'unit'" json:"rateUnit"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	CostPerUnit    decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"costPerUnit"`
	Profit         decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"profit"`
	PricePerWeight *decimal.Decimal `gorm:"type:decimal(20,4)" json:"-"`
	ReturnedQty    int              `gorm:"not null;default:0" json:"returnedQty"`
}

func (item QuotationItem) remainingQty() int {
	return item.Quantity - item.ReturnedQty
}

// share returns value * qty / item.Quantity.
func (item QuotationItem) share(value decimal.Decimal, qty int) decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	return value.Mul(decimal.NewFromInt(int64(qty))).Div(decimal.NewFromInt(int64(item.Quantity)))
}

func (item QuotationItem) restoreLine(qty int) RestoreLine {
	return RestoreLine{
		IdentityKey:    item.IdentityKey,
		Name:           item.ItemName,
		Type:           item.ItemType,
		Size:           item.Size,
		Color:          item.Color,
		Quantity:       qty,
		Weight:         roundWeight(item.share(item.Weight, qty)),
		PricePerWeight: item.PricePerWeight,
	}
}

type NewQuotationItem struct {
	ItemName    string       `json:"itemName"`
	Name        string       `json:"name"`
	IdentityKey string       `json:"identityKey"`
	Size        string       `json:"size"`
	Color       string       `json:"color"`
	Qty         LooseDecimal `json:"qty"`
	Weight      LooseDecimal `json:"weight"`
	Rate        LooseDecimal `json:"rate"`
	RateUnit    string       `json:"rateUnit"`
	Amount      LooseDecimal `json:"amount"`
	Profit      LooseDecimal `json:"profit"`
}

type NewQuotation struct {
	CustomerName  string             `json:"customerName"`
	CustomerPhone string             `json:"customerPhone"`
	Items         []NewQuotationItem `json:"items" binding:"required"`
	Discount      LooseDecimal       `json:"discount"`
	Loading       LooseDecimal       `json:"loading"`
	// Total and GrandTotal sent by the client are ignored; both are recomputed.
	Total      LooseDecimal `json:"total"`
	GrandTotal LooseDecimal `json:"grandTotal"`
	Payments   []NewPayment `json:"payments"`
	Date       FlexDate     `json:"date"`
	// IdempotencyKey comes from the Idempotency-Key request header.
	IdempotencyKey string `json:"-"`
}

type quotationLine struct {
	NewQuotationItem
	name     string
	key      string
	qty      int
	rateUnit RateUnit
}

func (input *NewQuotation) validate() ([]quotationLine, error) {
	if len(input.Items) == 0 {
		return nil, validationErrorf("at least one item is required")
	}
	lines := make([]quotationLine, 0, len(input.Items))
	for i, it := range input.Items {
		name := NormalizeText(it.ItemName)
		if name == "" {
			name = NormalizeText(it.Name)
		}
		if name == "" {
			return nil, validationErrorf("items[%d]: itemName is required", i)
		}
		if !it.Qty.Valid || !it.Qty.IsWhole() || !it.Qty.Decimal.IsPositive() {
			return nil, validationErrorf("items[%d]: qty must be a positive whole number", i)
		}
		if it.Weight.Decimal.IsNegative() || it.Rate.Decimal.IsNegative() || it.Amount.Decimal.IsNegative() {
			return nil, validationErrorf("items[%d]: weight, rate and amount cannot be negative", i)
		}
		if !it.Rate.Valid && !it.Amount.Valid {
			return nil, validationErrorf("items[%d]: rate or amount is required", i)
		}
		unit := RateUnit(NormalizeText(it.RateUnit))
		if unit == "" {
			unit = RateUnitPiece
		}
		if unit != RateUnitPiece && unit != RateUnitKg {
			return nil, validationErrorf("items[%d]: rateUnit must be unit or kg", i)
		}
		line := quotationLine{NewQuotationItem: it, name: name, qty: int(it.Qty.Decimal.IntPart()), rateUnit: unit}
		switch {
		case strings.TrimSpace(it.Size) != "" || strings.TrimSpace(it.Color) != "":
			line.key = IdentityKey(name, it.Size, it.Color)
		case strings.TrimSpace(it.IdentityKey) != "":
			line.key = NormalizeText(it.IdentityKey)
		}
		lines = append(lines, line)
	}
	if input.Discount.Decimal.IsNegative() || input.Loading.Decimal.IsNegative() {
		return nil, validationErrorf("discount and loading cannot be negative")
	}
	for i, p := range input.Payments {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("payments[%d]: %w", i, err)
		}
	}
	return lines, nil
}

// lockStock loads and row-locks the inventory records for every line in
// identity-key order. The result is aligned with lines; nil means no match.
func lockStock(tx *gorm.DB, lines []quotationLine) ([]*InventoryItem, error) {
	var keys, names []string
	for _, l := range lines {
		if l.key != "" {
			keys = append(keys, l.key)
		}
		names = append(names, l.name)
	}
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name IN ?", names)
	if len(keys) > 0 {
		q = q.Or("identity_key IN ?", keys)
	}
	var rows []InventoryItem
	if err := q.Order("identity_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	byKey := make(map[string]*InventoryItem, len(rows))
	byName := make(map[string]*InventoryItem, len(rows))
	for i := range rows {
		r := &rows[i]
		byKey[r.IdentityKey] = r
		if cur, ok := byName[r.Name]; !ok || r.ID < cur.ID {
			byName[r.Name] = r
		}
	}
	resolved := make([]*InventoryItem, len(lines))
	for i, l := range lines {
		if l.key != "" {
			resolved[i] = byKey[l.key]
			continue
		}
		if r, ok := byKey[IdentityKey(l.name, "", "")]; ok {
			resolved[i] = r
			continue
		}
		resolved[i] = byName[l.name]
	}
	return resolved, nil
}

// CreateQuotation validates stock for every line under row locks, numbers the
// invoice, stores the snapshot and deducts stock in one transaction. Any
// failure leaves inventory untouched.
func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, error) {
	lines, err := input.validate()
	if err != nil {
		return nil, err
	}
	settings, err := GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger()

	date := input.Date.OrNow()
	quotation := Quotation{
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		Discount:      input.Discount.Decimal,
		Loading:       input.Loading.Decimal,
		Status:        QuotationStatusActive,
		Date:          date,
		ReportMonth:   settings.CompanyMonthKey(date),
	}

	var claim *IdempotencyKey
	var replayRef string
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
			existing, replay, err := claimIdempotencyKey(tx, idempotencyScopeQuotation, key)
			if err != nil {
				return err
			}
			if replay {
				replayRef = existing.ResultRef
				return errIdempotentReplay
			}
			claim = existing
		}

		stock, err := lockStock(tx, lines)
		if err != nil {
			return err
		}

		requested := make(map[int]int)
		for i, l := range lines {
			item := stock[i]
			if item == nil {
				return fmt.Errorf("%w: %q is not in inventory", ErrOutOfStock, l.name)
			}
			requested[item.ID] += l.qty
			if requested[item.ID] > item.Quantity {
				return fmt.Errorf("%w: %q requested %d, available %d", ErrOutOfStock, l.name, requested[item.ID], item.Quantity)
			}
		}

		for i, l := range lines {
			quotation.Items = append(quotation.Items, buildQuotationItem(l, stock[i]))
		}
		quotation.Total = decimal.Zero
		quotation.Profit = decimal.Zero
		for _, it := range quotation.Items {
			quotation.Total = quotation.Total.Add(it.Amount)
			quotation.Profit = quotation.Profit.Add(it.Profit)
		}
		quotation.GrandTotal = Round2(quotation.Total.Sub(quotation.Discount).Add(quotation.Loading))
		if quotation.GrandTotal.IsNegative() {
			return validationErrorf("discount exceeds total")
		}
		// discount comes off the profit, loading is passed through
		quotation.Profit = Round2(quotation.Profit.Sub(quotation.Discount))
		quotation.ReportedSales = quotation.GrandTotal
		quotation.ReportedProfit = quotation.Profit

		for _, p := range input.Payments {
			quotation.Payments = append(quotation.Payments, QuotationPayment{Amount: p.Amount.Decimal, Date: p.Date.OrNow()})
		}
		quotation.computeTotals()
		if config.EnforcePaymentBalance() && quotation.TotalReceived.GreaterThan(quotation.GrandTotal) {
			return validationErrorf("payments %s exceed grand total %s", quotation.TotalReceived, quotation.GrandTotal)
		}

		seq, err := NextSequence(tx, SequenceQuotation, seedFromCount(&Quotation{}))
		if err != nil {
			return err
		}
		quotation.QuotationId = fmt.Sprintf("INV-%04d", seq)

		if err := tx.Create(&quotation).Error; err != nil {
			return err
		}

		for i, l := range lines {
			result, err := deduct(tx, stock[i], l.qty, quotation.Items[i].Weight)
			if err != nil {
				return err
			}
			if result.Partial() {
				logger.WithFields(logrus.Fields{
					"module":       "quotation",
					"quotation_id": quotation.QuotationId,
					"identity_key": result.Item.IdentityKey,
					"short_weight": result.Shortfall.Weight.String(),
				}).Warn("sale weight exceeds stock weight, clamped at zero")
			}
		}

		if err := adjustSalesReport(tx, quotation.ReportMonth, reportDelta{
			Sales:        quotation.GrandTotal,
			Profit:       quotation.Profit,
			InvoiceCount: 1,
		}); err != nil {
			return err
		}
		if err := recordIdempotencyResult(tx, claim, quotation.QuotationId); err != nil {
			return err
		}
		return PublishEvent(ctx, tx, EventQuotationCreated, "quotation", quotation.QuotationId, quotationEventPayload(&quotation))
	})
	if errors.Is(err, errIdempotentReplay) {
		return GetQuotation(ctx, replayRef)
	}
	if err != nil {
		return nil, err
	}
	quotation.computeTotals()
	return &quotation, nil
}

func buildQuotationItem(l quotationLine, stock *InventoryItem) QuotationItem {
	item := QuotationItem{
		ItemName:       stock.Name,
		ItemType:       stock.Type,
		Size:           stock.Size,
		Color:          stock.Color,
		IdentityKey:    stock.IdentityKey,
		Quantity:       l.qty,
		Rate:           l.Rate.Decimal,
		RateUnit:       l.rateUnit,
		PricePerWeight: stock.PricePerWeight,
	}
	qty := decimal.NewFromInt(int64(l.qty))

	if l.Weight.Valid && l.Weight.Decimal.IsPositive() {
		item.Weight = l.Weight.Decimal
	} else {
		item.Weight = roundWeight(stock.unitWeight().Mul(qty))
	}

	if l.Amount.Valid {
		item.Amount = Round2(l.Amount.Decimal)
	} else if l.rateUnit == RateUnitKg {
		item.Amount = Round2(l.Rate.Decimal.Mul(item.Weight))
	} else {
		item.Amount = Round2(l.Rate.Decimal.Mul(qty))
	}

	if stock.PricePerUnit != nil {
		item.CostPerUnit = *stock.PricePerUnit
	}
	if l.Profit.Valid {
		item.Profit = Round2(l.Profit.Decimal)
	} else {
		item.Profit = Round2(item.Amount.Sub(item.CostPerUnit.Mul(qty)))
	}
	return item
}

func (q *Quotation) computeTotals() {
	received := decimal.Zero
	for _, p := range q.Payments {
		received = received.Add(p.Amount)
	}
	q.TotalReceived = received
	q.Balance = maxZero(q.GrandTotal.Sub(received))
}

func quotationEventPayload(q *Quotation) map[string]interface{} {
	return map[string]interface{}{
		"quotationId": q.QuotationId,
		"status":      q.Status,
		"grandTotal":  q.GrandTotal,
		"profit":      q.Profit,
		"reportMonth": q.ReportMonth,
		"itemCount":   len(q.Items),
	}
}

// byQuotationRef accepts a numeric id or an INV-xxxx code.
func byQuotationRef(tx *gorm.DB, ref string) *gorm.DB {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		return tx.Where("id = ?", n)
	}
	return tx.Where("quotation_id = ?", strings.ToUpper(ref))
}

func withQuotationChildren(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC, id ASC") })
}

func GetQuotation(ctx context.Context, ref string) (*Quotation, error) {
	var q Quotation
	err := byQuotationRef(withQuotationChildren(config.GetDB().WithContext(ctx)), ref).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("quotation %s", ref)
	}
	if err != nil {
		return nil, err
	}
	q.computeTotals()
	return &q, nil
}

// lockQuotation loads the quotation row with FOR UPDATE plus its children.
func lockQuotation(tx *gorm.DB, ref string) (*Quotation, error) {
	var q Quotation
	err := byQuotationRef(withQuotationChildren(tx).Clauses(clause.Locking{Strength: "UPDATE"}), ref).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("quotation %s", ref)
	}
	if err != nil {
		return nil, err
	}
	q.computeTotals()
	return &q, nil
}

// QuotationFilter narrows ListQuotations. Month is a company month key
// (YYYY-MM) and applies on top of From/To.
type QuotationFilter struct {
	Status string `form:"status"`
	From   string `form:"from"`
	To     string `form:"to"`
	Month  string `form:"month"`
	Search string `form:"search"`
	After  string `form:"after"`
	Limit  int    `form:"limit"`
}

// ListQuotations pages newest first. After is the EndCursor of the previous page.
func ListQuotations(ctx context.Context, filter QuotationFilter) ([]Quotation, *PageInfo, error) {
	db := withQuotationChildren(config.GetDB().WithContext(ctx))
	if v := NormalizeText(filter.Status); v != "" {
		db = db.Where("status = ?", v)
	}
	afterId, err := DecodeCursor(filter.After)
	if err != nil {
		return nil, nil, err
	}
	if afterId > 0 {
		db = db.Where("id < ?", afterId)
	}
	from, err := ParseDate(filter.From)
	if err != nil {
		return nil, nil, err
	}
	if !from.IsZero() {
		db = db.Where("date >= ?", from)
	}
	to, err := ParseDate(filter.To)
	if err != nil {
		return nil, nil, err
	}
	if !to.IsZero() {
		db = db.Where("date < ?", to.AddDate(0, 0, 1))
	}
	if key := strings.TrimSpace(filter.Month); key != "" {
		settings, err := GetSettings(ctx)
		if err != nil {
			return nil, nil, err
		}
		monthFrom, monthTo, err := settings.CompanyMonthRange(key)
		if err != nil {
			return nil, nil, err
		}
		db = db.Where("date >= ? AND date < ?", monthFrom, monthTo)
	}
	if v := strings.TrimSpace(filter.Search); v != "" {
		db = db.Where("quotation_id LIKE ? OR customer_name LIKE ?", "%"+strings.ToUpper(v)+"%", "%"+v+"%")
	}
	limit := clampPageSize(filter.Limit)
	quotations := make([]Quotation, 0)
	if err := db.Order("id DESC").Limit(limit + 1).Find(&quotations).Error; err != nil {
		return nil, nil, err
	}
	page := &PageInfo{}
	if len(quotations) > limit {
		quotations = quotations[:limit]
		page.HasNextPage = true
	}
	if len(quotations) > 0 {
		page.StartCursor = EncodeCursor(quotations[0].ID)
		page.EndCursor = EncodeCursor(quotations[len(quotations)-1].ID)
	}
	for i := range quotations {
		quotations[i].computeTotals()
	}
	return quotations, page, nil
}

// DeleteQuotation puts back every unit that has not been returned already,
// reverses the report totals and removes the invoice.
func DeleteQuotation(ctx context.Context, ref string) (*Quotation, error) {
	var quotation *Quotation
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		quotation, err = lockQuotation(tx, ref)
		if err != nil {
			return err
		}
		for _, item := range quotation.Items {
			qty := item.remainingQty()
			if qty <= 0 {
				continue
			}
			if _, err := restore(tx, item.restoreLine(qty)); err != nil {
				return err
			}
		}
		if err := adjustSalesReport(tx, quotation.ReportMonth, reportDelta{
			Sales:        quotation.ReportedSales.Neg(),
			Profit:       quotation.ReportedProfit.Neg(),
			InvoiceCount: -1,
		}); err != nil {
			return err
		}
		if err := tx.Where("quotation_ref_id = ?", quotation.ID).Delete(&QuotationPayment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quotation_ref_id = ?", quotation.ID).Delete(&QuotationItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Quotation{}, quotation.ID).Error; err != nil {
			return err
		}
		return PublishEvent(ctx, tx, EventQuotationDeleted, "quotation", quotation.QuotationId, quotationEventPayload(quotation))
	})
	if err != nil {
		return nil, err
	}
	return quotation, nil
}
