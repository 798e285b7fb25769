package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReturnKind string

const (
	// ReturnKindInvoice is the single-item path that closes the whole invoice.
	ReturnKindInvoice ReturnKind = "invoice"
	// ReturnKindItems leaves the invoice active.
	ReturnKindItems ReturnKind = "items"
)

type ReturnRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ReturnId         string          `gorm:"size:20;not null;uniqueIndex" json:"returnId"`
	ReferenceInvoice string          `gorm:"size:20;not null;index" json:"referenceInvoice"`
	Kind             ReturnKind      `gorm:"size:20;not null" json:"kind"`
	Items            []ReturnLine    `gorm:"foreignKey:ReturnRefId" json:"itemsReturned"`
	TotalRefund      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"totalRefund"`
	Reason           string          `gorm:"size:255" json:"reason"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type ReturnLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ReturnRefId  int             `gorm:"index;not null" json:"-"`
	ItemName     string          `gorm:"size:150;not null" json:"itemName"`
	IdentityKey  string          `gorm:"size:255" json:"identityKey"`
	Qty          int             `gorm:"not null" json:"qty"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"rate"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"refundAmount"`
	RefundWeight decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"refundWeight"`
}

type ReturnItemInput struct {
	ItemName string       `json:"itemName"`
	Name     string       `json:"name"`
	Qty      LooseDecimal `json:"qty"`
}

func (r ReturnItemInput) name() string {
	if n := NormalizeText(r.ItemName); n != "" {
		return n
	}
	return NormalizeText(r.Name)
}

// ReturnItems decodes either a single object or an array of objects.
type ReturnItems []ReturnItemInput

func (r *ReturnItems) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*r = nil
		return nil
	}
	if raw[0] == '[' {
		var many []ReturnItemInput
		if err := json.Unmarshal(raw, &many); err != nil {
			return err
		}
		*r = many
		return nil
	}
	var one ReturnItemInput
	if err := json.Unmarshal(raw, &one); err != nil {
		return err
	}
	*r = ReturnItems{one}
	return nil
}

// NewReturn is either the simple form (itemName + qty) or the itemized form
// (itemReturned / itemsReturned), which is folded into Items on decode.
type NewReturn struct {
	InvoiceId string
	ItemName  string
	Qty       LooseDecimal
	Items     ReturnItems
	Reason    string
}

func (n *NewReturn) UnmarshalJSON(b []byte) error {
	var raw struct {
		InvoiceId     string       `json:"invoiceId"`
		ItemName      string       `json:"itemName"`
		Qty           LooseDecimal `json:"qty"`
		ItemReturned  ReturnItems  `json:"itemReturned"`
		ItemsReturned ReturnItems  `json:"itemsReturned"`
		Reason        string       `json:"reason"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = NewReturn{
		InvoiceId: strings.TrimSpace(raw.InvoiceId),
		ItemName:  raw.ItemName,
		Qty:       raw.Qty,
		Reason:    strings.TrimSpace(raw.Reason),
	}
	n.Items = append(n.Items, raw.ItemReturned...)
	n.Items = append(n.Items, raw.ItemsReturned...)
	return nil
}

func (n NewReturn) Itemized() bool {
	return len(n.Items) > 0
}

type returnRequest struct {
	index int
	qty   int
}

func positiveWholeQty(l LooseDecimal) (int, bool) {
	if !l.Valid || !l.IsWhole() || !l.Decimal.IsPositive() {
		return 0, false
	}
	return int(l.Decimal.IntPart()), true
}

func findQuotationItem(q *Quotation, name string) int {
	for i, it := range q.Items {
		if it.ItemName == name || it.IdentityKey == name {
			return i
		}
	}
	return -1
}

// applyReturn restores stock, bumps ReturnedQty, reverses the report share and
// writes the return record. Caller holds the quotation lock.
func applyReturn(ctx context.Context, tx *gorm.DB, q *Quotation, kind ReturnKind, requests []returnRequest, reason string) (*ReturnRecord, error) {
	record := ReturnRecord{
		ReferenceInvoice: q.QuotationId,
		Kind:             kind,
		Reason:           reason,
		TotalRefund:      decimal.Zero,
	}
	profit := decimal.Zero

	for _, req := range requests {
		item := &q.Items[req.index]
		refund := Round2(item.share(item.Amount, req.qty))
		record.Items = append(record.Items, ReturnLine{
			ItemName:     item.ItemName,
			IdentityKey:  item.IdentityKey,
			Qty:          req.qty,
			Rate:         item.Rate,
			RefundAmount: refund,
			RefundWeight: roundWeight(item.share(item.Weight, req.qty)),
		})
		record.TotalRefund = record.TotalRefund.Add(refund)
		profit = profit.Add(Round2(item.share(item.Profit, req.qty)))

		if _, err := restore(tx, item.restoreLine(req.qty)); err != nil {
			return nil, err
		}
		item.ReturnedQty += req.qty
		if err := tx.Model(&QuotationItem{}).Where("id = ?", item.ID).Update("returned_qty", item.ReturnedQty).Error; err != nil {
			return nil, err
		}
	}

	q.ReportedSales = q.ReportedSales.Sub(record.TotalRefund)
	q.ReportedProfit = q.ReportedProfit.Sub(profit)
	if err := tx.Model(&Quotation{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
		"reported_sales":  q.ReportedSales,
		"reported_profit": q.ReportedProfit,
	}).Error; err != nil {
		return nil, err
	}
	if err := adjustSalesReport(tx, q.ReportMonth, reportDelta{
		Sales:   record.TotalRefund.Neg(),
		Profit:  profit.Neg(),
		Returns: record.TotalRefund,
	}); err != nil {
		return nil, err
	}

	seq, err := NextSequence(tx, SequenceReturn, seedFromCount(&ReturnRecord{}))
	if err != nil {
		return nil, err
	}
	record.ReturnId = fmt.Sprintf("RET-%04d", seq)
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}

	if err := PublishEvent(ctx, tx, EventReturnProcessed, "return", record.ReturnId, map[string]interface{}{
		"returnId":         record.ReturnId,
		"referenceInvoice": record.ReferenceInvoice,
		"kind":             record.Kind,
		"totalRefund":      record.TotalRefund,
		"quotationStatus":  q.Status,
	}); err != nil {
		return nil, err
	}
	return &record, nil
}

// ProcessReturn is the simple path: the invoice flips from active to returned
// (compare-and-set on status) and qty units of one item go back to stock.
func ProcessReturn(ctx context.Context, invoiceId string, itemName string, qty LooseDecimal) (*ReturnRecord, error) {
	name := NormalizeText(itemName)
	if strings.TrimSpace(invoiceId) == "" || name == "" {
		return nil, validationErrorf("invoiceId and itemName are required")
	}
	n, ok := positiveWholeQty(qty)
	if !ok {
		return nil, validationErrorf("qty must be a positive whole number")
	}

	var record *ReturnRecord
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, invoiceId)
		if err != nil {
			return err
		}
		if q.Status != QuotationStatusActive {
			return fmt.Errorf("%w: quotation %s is %s", ErrAlreadyProcessed, q.QuotationId, q.Status)
		}
		idx := findQuotationItem(q, name)
		if idx < 0 {
			return validationErrorf("item %q is not on quotation %s", name, q.QuotationId)
		}
		if n > q.Items[idx].remainingQty() {
			return validationErrorf("cannot return %d of %q, %d returnable", n, name, q.Items[idx].remainingQty())
		}

		res := tx.Model(&Quotation{}).
			Where("id = ? AND status = ?", q.ID, QuotationStatusActive).
			Update("status", QuotationStatusReturned)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: quotation %s", ErrAlreadyProcessed, q.QuotationId)
		}
		q.Status = QuotationStatusReturned

		record, err = applyReturn(ctx, tx, q, ReturnKindInvoice, []returnRequest{{index: idx, qty: n}}, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreateReturn is the itemized path. Each line may return at most what was
// sold minus what came back before; the invoice stays active.
func CreateReturn(ctx context.Context, input *NewReturn) (*ReturnRecord, error) {
	if input.InvoiceId == "" {
		return nil, validationErrorf("invoiceId is required")
	}
	if len(input.Items) == 0 {
		return nil, validationErrorf("at least one returned item is required")
	}
	type wanted struct {
		name string
		qty  int
	}
	lines := make([]wanted, 0, len(input.Items))
	for i, it := range input.Items {
		name := it.name()
		if name == "" {
			return nil, validationErrorf("itemsReturned[%d]: itemName is required", i)
		}
		qty, ok := positiveWholeQty(it.Qty)
		if !ok {
			return nil, validationErrorf("itemsReturned[%d]: qty must be a positive whole number", i)
		}
		lines = append(lines, wanted{name: name, qty: qty})
	}

	var record *ReturnRecord
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, input.InvoiceId)
		if err != nil {
			return err
		}
		if q.Status != QuotationStatusActive {
			return fmt.Errorf("%w: quotation %s is %s", ErrAlreadyProcessed, q.QuotationId, q.Status)
		}

		requests := make([]returnRequest, 0, len(lines))
		perItem := make(map[int]int)
		for _, l := range lines {
			idx := findQuotationItem(q, l.name)
			if idx < 0 {
				return validationErrorf("item %q is not on quotation %s", l.name, q.QuotationId)
			}
			perItem[idx] += l.qty
			if perItem[idx] > q.Items[idx].remainingQty() {
				return validationErrorf("cannot return %d of %q, %d returnable", perItem[idx], l.name, q.Items[idx].remainingQty())
			}
			requests = append(requests, returnRequest{index: idx, qty: l.qty})
		}

		record, err = applyReturn(ctx, tx, q, ReturnKindItems, requests, input.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetReturn accepts a numeric id or a RET-xxxx code.
func GetReturn(ctx context.Context, ref string) (*ReturnRecord, error) {
	db := config.GetDB().WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		db = db.Where("id = ?", n)
	} else {
		db = db.Where("return_id = ?", strings.ToUpper(ref))
	}
	var record ReturnRecord
	err := db.Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("return %s", ref)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func ListReturns(ctx context.Context, invoiceId string) ([]ReturnRecord, error) {
	db := config.GetDB().WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
	if v := strings.TrimSpace(invoiceId); v != "" {
		db = db.Where("reference_invoice = ?", strings.ToUpper(v))
	}
	records := make([]ReturnRecord, 0)
	if err := db.Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
