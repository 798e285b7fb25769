package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateListEntry is the current price per kg for a (type, gauge, size).
type RateListEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Type           ItemType        `gorm:"size:20;not null;uniqueIndex:idx_rate_key,priority:1" json:"type"`
	Gauge          string          `gorm:"size:20;not null;uniqueIndex:idx_rate_key,priority:2" json:"gauge"`
	Size           string          `gorm:"size:50;not null;uniqueIndex:idx_rate_key,priority:3" json:"size"`
	PricePerWeight decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"pricePerWeight"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewRate struct {
	Type           string       `json:"type" binding:"required"`
	Gauge          string       `json:"gauge"`
	Size           string       `json:"size"`
	PricePerWeight LooseDecimal `json:"pricePerWeight"`
}

type UpsertRateResult struct {
	Rate         *RateListEntry `json:"rate"`
	ItemsUpdated int            `json:"itemsUpdated"`
}

/*
caches:
	RateListEntryList
*/

// ListRates serves from Redis when the list is cached.
func ListRates(ctx context.Context) ([]*RateListEntry, error) {
	cached, err := utils.RetrieveRedisList[RateListEntry]()
	if err != nil {
		config.LogError(config.GetLogger(), "ratelist", "ListRates", "redis read", nil, err)
	}
	if cached != nil {
		return cached, nil
	}

	rates := make([]*RateListEntry, 0)
	if err := config.GetDB().WithContext(ctx).Order("type, gauge, size").Find(&rates).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList(rates); err != nil {
		config.LogError(config.GetLogger(), "ratelist", "ListRates", "redis write", nil, err)
	}
	return rates, nil
}

// UpsertRate saves the rate and re-prices every inventory item of the same
// (type, gauge, size).
func UpsertRate(ctx context.Context, input *NewRate) (*UpsertRateResult, error) {
	rate := RateListEntry{
		Type:  ItemType(NormalizeText(input.Type)),
		Gauge: NormalizeText(input.Gauge),
		Size:  NormalizeText(input.Size),
	}
	if !rate.Type.IsValid() {
		return nil, validationErrorf("type must be one of pipe, pillar, hardware")
	}
	if !input.PricePerWeight.Valid || input.PricePerWeight.Decimal.IsNegative() {
		return nil, validationErrorf("pricePerWeight must be a non-negative number")
	}
	rate.PricePerWeight = input.PricePerWeight.Decimal

	result := UpsertRateResult{Rate: &rate}
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RateListEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("type = ? AND gauge = ? AND size = ?", rate.Type, rate.Gauge, rate.Size).
			Take(&existing).Error
		switch {
		case err == nil:
			existing.PricePerWeight = rate.PricePerWeight
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			rate = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&rate).Error; err != nil {
				return err
			}
		default:
			return err
		}

		var items []InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("type = ? AND gauge = ? AND size = ?", rate.Type, rate.Gauge, rate.Size).
			Order("identity_key").
			Find(&items).Error; err != nil {
			return err
		}
		for i := range items {
			ppw := rate.PricePerWeight
			items[i].PricePerWeight = &ppw
			items[i].rederivePrice()
			if err := tx.Model(&items[i]).Select("price_per_weight", "price_per_unit", "updated_at").Updates(&items[i]).Error; err != nil {
				return err
			}
		}
		result.ItemsUpdated = len(items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[RateListEntry](); err != nil {
		config.LogError(config.GetLogger(), "ratelist", "UpsertRate", "redis invalidate", nil, err)
	}
	return &result, nil
}

func lookupRate(tx *gorm.DB, itemType ItemType, gauge string, size string) (*RateListEntry, error) {
	var rate RateListEntry
	err := tx.Where("type = ? AND gauge = ? AND size = ?", itemType, gauge, size).Take(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
