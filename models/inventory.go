package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemType string

const (
	ItemTypePipe     ItemType = "pipe"
	ItemTypePillar   ItemType = "pillar"
	ItemTypeHardware ItemType = "hardware"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypePipe, ItemTypePillar, ItemTypeHardware:
		return true
	}
	return false
}

// codePrefix is set for types that get an auto-generated code (p001, pl001).
func (t ItemType) codePrefix() (prefix string, sequence string, ok bool) {
	switch t {
	case ItemTypePipe:
		return "p", SequenceInventoryPipe, true
	case ItemTypePillar:
		return "pl", SequenceInventoryPillar, true
	}
	return "", "", false
}

type InventoryItem struct {
	ID             int              `gorm:"primary_key" json:"id"`
	Name           string           `gorm:"size:150;not null;index" json:"name"`
	Type           ItemType         `gorm:"size:20;not null;index" json:"type"`
	PipeType       string           `gorm:"size:50" json:"pipeType"`
	Gauge          string           `gorm:"size:20;index" json:"gauge"`
	Gote           string           `gorm:"size:20" json:"gote"`
	Size           string           `gorm:"size:50;index" json:"size"`
	Color          string           `gorm:"size:50" json:"color"`
	Weight         decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"weight"`
	Quantity       int              `gorm:"not null;default:0" json:"quantity"`
	PricePerWeight *decimal.Decimal `gorm:"type:decimal(20,4)" json:"pricePerWeight"`
	PricePerUnit   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"pricePerUnit"`
	IdentityKey    string           `gorm:"size:255;not null;uniqueIndex" json:"identityKey"`
	SequenceIndex  int              `gorm:"not null;default:0" json:"sequenceIndex"`
	Code           string           `gorm:"size:20" json:"code"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewStock struct {
	Name           string       `json:"name"`
	Type           string       `json:"type" binding:"required"`
	PipeType       string       `json:"pipeType"`
	Gauge          string       `json:"gauge"`
	Gote           string       `json:"gote"`
	Size           string       `json:"size"`
	Color          string       `json:"color"`
	Weight         LooseDecimal `json:"weight"`
	Quantity       LooseDecimal `json:"quantity"`
	PricePerWeight LooseDecimal `json:"pricePerWeight"`
	PricePerUnit   LooseDecimal `json:"pricePerUnit"`
}

// normalize lowercases and trims every text attribute, coerces numbers and
// computes the identity key.
func (input *NewStock) normalize() (InventoryItem, error) {
	item := InventoryItem{
		Name:           NormalizeText(input.Name),
		Type:           ItemType(NormalizeText(input.Type)),
		PipeType:       NormalizeText(input.PipeType),
		Gauge:          NormalizeText(input.Gauge),
		Gote:           NormalizeText(input.Gote),
		Size:           NormalizeText(input.Size),
		Color:          NormalizeText(input.Color),
		Weight:         input.Weight.Decimal,
		PricePerWeight: input.PricePerWeight.Ptr(),
		PricePerUnit:   input.PricePerUnit.Ptr(),
	}
	if !item.Type.IsValid() {
		return item, validationErrorf("type must be one of pipe, pillar, hardware")
	}
	if _, _, auto := item.Type.codePrefix(); !auto && item.Name == "" {
		return item, validationErrorf("name is required")
	}
	if !input.Quantity.IsWhole() {
		return item, validationErrorf("quantity must be a whole number")
	}
	item.Quantity = int(input.Quantity.Decimal.IntPart())
	if item.Quantity < 0 || item.Weight.IsNegative() {
		return item, validationErrorf("quantity and weight cannot be negative")
	}
	if (item.PricePerWeight != nil && item.PricePerWeight.IsNegative()) || (item.PricePerUnit != nil && item.PricePerUnit.IsNegative()) {
		return item, validationErrorf("prices cannot be negative")
	}
	item.IdentityKey = IdentityKey(item.Name, item.Size, item.Color)
	return item, nil
}

func (item *InventoryItem) rederivePrice() {
	item.PricePerUnit = DerivePricePerUnit(item.Weight, item.Quantity, item.PricePerWeight, item.PricePerUnit)
}

// unitWeight is the average weight of one piece, zero for empty stock.
func (item InventoryItem) unitWeight() decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	return item.Weight.Div(decimal.NewFromInt(int64(item.Quantity)))
}

type AddStockResult struct {
	Item   *InventoryItem `json:"item"`
	Merged bool           `json:"merged"`
}

// AddStock merges into the record with the same identity key or inserts a new one.
func AddStock(ctx context.Context, input *NewStock) (*AddStockResult, error) {
	item, err := input.normalize()
	if err != nil {
		return nil, err
	}

	var result AddStockResult
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.PricePerWeight == nil {
			rate, err := lookupRate(tx, item.Type, item.Gauge, item.Size)
			if err != nil {
				return err
			}
			if rate != nil {
				item.PricePerWeight = &rate.PricePerWeight
			}
		}

		if item.Name != "" {
			var existing InventoryItem
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("identity_key = ?", item.IdentityKey).Take(&existing).Error
			if err == nil {
				existing.Quantity += item.Quantity
				existing.Weight = existing.Weight.Add(item.Weight)
				if item.PricePerWeight != nil {
					existing.PricePerWeight = item.PricePerWeight
				}
				if item.PricePerUnit != nil {
					existing.PricePerUnit = item.PricePerUnit
				}
				existing.rederivePrice()
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				result = AddStockResult{Item: &existing, Merged: true}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := assignCode(tx, &item); err != nil {
			return err
		}
		item.rederivePrice()
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		result = AddStockResult{Item: &item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// assignCode allocates the next p%03d / pl%03d code for auto-named types.
// An unnamed item takes its code as name.
func assignCode(tx *gorm.DB, item *InventoryItem) error {
	prefix, sequence, ok := item.Type.codePrefix()
	if !ok {
		return nil
	}
	next, err := NextSequence(tx, sequence, seedFromMaxIndex(item.Type))
	if err != nil {
		return err
	}
	item.SequenceIndex = int(next)
	item.Code = fmt.Sprintf("%s%03d", prefix, next)
	if item.Name == "" {
		item.Name = item.Code
		item.IdentityKey = IdentityKey(item.Name, item.Size, item.Color)
	}
	return nil
}

// Shortfall is the part of a deduction the stock could not cover.
type Shortfall struct {
	Quantity int             `json:"quantity"`
	Weight   decimal.Decimal `json:"weight"`
}

type DeductionResult struct {
	Item      *InventoryItem `json:"item"`
	Shortfall Shortfall      `json:"shortfall"`
}

// Partial reports whether the deduction was clamped at zero.
func (r DeductionResult) Partial() bool {
	return r.Shortfall.Quantity > 0 || r.Shortfall.Weight.IsPositive()
}

// findItemForUpdate resolves an item by identity key first, then by name.
func findItemForUpdate(tx *gorm.DB, identityKey string, name string) (*InventoryItem, error) {
	var item InventoryItem
	locked := func() *gorm.DB { return tx.Clauses(clause.Locking{Strength: "UPDATE"}) }
	if key := NormalizeText(identityKey); key != "" {
		err := locked().Where("identity_key = ?", key).Take(&item).Error
		if err == nil {
			return &item, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if n := NormalizeText(name); n != "" {
		err := locked().Where("name = ?", n).Order("id ASC").Take(&item).Error
		if err == nil {
			return &item, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// deduct lowers stock by qty and weight, clamping at zero, and reports what
// could not be covered.
func deduct(tx *gorm.DB, item *InventoryItem, qty int, weight decimal.Decimal) (DeductionResult, error) {
	var shortfall Shortfall
	if qty > item.Quantity {
		shortfall.Quantity = qty - item.Quantity
		item.Quantity = 0
	} else {
		item.Quantity -= qty
	}
	remaining := item.Weight.Sub(weight)
	if remaining.IsNegative() {
		shortfall.Weight = remaining.Neg()
		remaining = decimal.Zero
	}
	item.Weight = remaining
	item.rederivePrice()
	if err := tx.Model(item).Select("quantity", "weight", "price_per_unit", "updated_at").Updates(item).Error; err != nil {
		return DeductionResult{}, err
	}
	return DeductionResult{Item: item, Shortfall: shortfall}, nil
}

type DeductStockInput struct {
	IdentityKey string       `json:"identityKey"`
	Name        string       `json:"name"`
	Quantity    LooseDecimal `json:"qty"`
	Weight      LooseDecimal `json:"weight"`
}

// DeductStock is the direct stock-out used by PATCH /items.
func DeductStock(ctx context.Context, input *DeductStockInput) (*DeductionResult, error) {
	if strings.TrimSpace(input.IdentityKey) == "" && strings.TrimSpace(input.Name) == "" {
		return nil, validationErrorf("name or identityKey is required")
	}
	if !input.Quantity.IsWhole() || input.Quantity.Decimal.IsNegative() || input.Weight.Decimal.IsNegative() {
		return nil, validationErrorf("qty must be a non-negative whole number and weight non-negative")
	}

	var result DeductionResult
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := findItemForUpdate(tx, input.IdentityKey, input.Name)
		if err != nil {
			return err
		}
		if item == nil {
			return notFoundErrorf("item %q", strings.TrimSpace(input.Name+" "+input.IdentityKey))
		}
		result, err = deduct(tx, item, int(input.Quantity.Decimal.IntPart()), input.Weight.Decimal)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Partial() {
		config.GetLogger().WithFields(logrus.Fields{
			"module":       "inventory",
			"identity_key": result.Item.IdentityKey,
			"short_qty":    result.Shortfall.Quantity,
			"short_weight": result.Shortfall.Weight.String(),
		}).Warn("stock deduction clamped at zero")
	}
	return &result, nil
}

// RestoreLine carries whatever is known about an item coming back into stock.
type RestoreLine struct {
	IdentityKey string
	Name        string
	Type        ItemType
	Size        string
	Color       string
	Quantity    int
	Weight      decimal.Decimal
	// PricePerWeight seeds a placeholder record when the original was removed.
	PricePerWeight *decimal.Decimal
}

// restore puts stock back. When the item no longer exists a placeholder record
// is rebuilt from the line so the stock is not lost.
func restore(tx *gorm.DB, line RestoreLine) (*InventoryItem, error) {
	item, err := findItemForUpdate(tx, line.IdentityKey, line.Name)
	if err != nil {
		return nil, err
	}
	if item != nil {
		item.Quantity += line.Quantity
		item.Weight = item.Weight.Add(line.Weight)
		item.rederivePrice()
		if err := tx.Model(item).Select("quantity", "weight", "price_per_unit", "updated_at").Updates(item).Error; err != nil {
			return nil, err
		}
		return item, nil
	}

	placeholder := InventoryItem{
		Name:           NormalizeText(line.Name),
		Type:           line.Type,
		Size:           NormalizeText(line.Size),
		Color:          NormalizeText(line.Color),
		Quantity:       line.Quantity,
		Weight:         line.Weight,
		PricePerWeight: line.PricePerWeight,
	}
	if !placeholder.Type.IsValid() {
		placeholder.Type = ItemTypeHardware
	}
	placeholder.IdentityKey = IdentityKey(placeholder.Name, placeholder.Size, placeholder.Color)
	if err := assignCode(tx, &placeholder); err != nil {
		return nil, err
	}
	placeholder.rederivePrice()
	if err := tx.Create(&placeholder).Error; err != nil {
		return nil, err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"module":       "inventory",
		"identity_key": placeholder.IdentityKey,
	}).Warn("restored stock into a placeholder record")
	return &placeholder, nil
}

type ItemFilter struct {
	Type   string `form:"type"`
	Size   string `form:"size"`
	Gauge  string `form:"gauge"`
	Search string `form:"search"`
}

func ListItems(ctx context.Context, filter ItemFilter) ([]InventoryItem, error) {
	db := config.GetDB().WithContext(ctx)
	if v := NormalizeText(filter.Type); v != "" {
		db = db.Where("type = ?", v)
	}
	if v := NormalizeText(filter.Size); v != "" {
		db = db.Where("size = ?", v)
	}
	if v := NormalizeText(filter.Gauge); v != "" {
		db = db.Where("gauge = ?", v)
	}
	if v := NormalizeText(filter.Search); v != "" {
		db = db.Where("name LIKE ?", "%"+v+"%")
	}
	items := make([]InventoryItem, 0)
	if err := db.Order("type ASC, sequence_index ASC, name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func GetItem(ctx context.Context, id int) (*InventoryItem, error) {
	var item InventoryItem
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("item %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem is a direct edit: attributes are replaced, the record is re-keyed
// and the unit price re-derived.
func UpdateItem(ctx context.Context, id int, input *NewStock) (*InventoryItem, error) {
	updated, err := input.normalize()
	if err != nil {
		return nil, err
	}

	var item InventoryItem
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErrorf("item %d", id)
			}
			return err
		}
		if updated.Name == "" {
			updated.Name = item.Name
			updated.IdentityKey = IdentityKey(updated.Name, updated.Size, updated.Color)
		}
		if updated.IdentityKey != item.IdentityKey {
			var count int64
			if err := tx.Model(&InventoryItem{}).Where("identity_key = ? AND id <> ?", updated.IdentityKey, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return validationErrorf("another item already uses %q", updated.IdentityKey)
			}
		}

		item.Name = updated.Name
		item.PipeType = updated.PipeType
		item.Gauge = updated.Gauge
		item.Gote = updated.Gote
		item.Size = updated.Size
		item.Color = updated.Color
		item.IdentityKey = updated.IdentityKey
		item.Quantity = updated.Quantity
		item.Weight = updated.Weight
		item.PricePerWeight = updated.PricePerWeight
		item.PricePerUnit = updated.PricePerUnit
		if item.Type != updated.Type {
			item.Type = updated.Type
			item.SequenceIndex = 0
			item.Code = ""
			if err := assignCode(tx, &item); err != nil {
				return err
			}
		}
		item.rederivePrice()
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an inventory record. Quotations keep their snapshots.
func DeleteItem(ctx context.Context, id int) (*InventoryItem, error) {
	item, err := GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(&InventoryItem{}, id).Error; err != nil {
		return nil, err
	}
	return item, nil
}
