package models

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter names.
const (
	SequenceQuotation       = "quotation"
	SequenceReturn          = "return"
	SequenceInventoryPipe   = "inventory_pipe"
	SequenceInventoryPillar = "inventory_pillar"
)

// Sequence is one row per named counter.
type Sequence struct {
	Name      string    `gorm:"primaryKey;size:50" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// seedFunc returns the value a counter starts from when its row does not exist
// yet, so numbering continues from data created before the counter.
type seedFunc func(tx *gorm.DB) (int64, error)

// NextSequence increments the named counter under a row lock held by tx and
// returns the new value. The number is only consumed if tx commits.
func NextSequence(tx *gorm.DB, name string, seed seedFunc) (int64, error) {
	var seq Sequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).Take(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var start int64
		if seed != nil {
			if start, err = seed(tx); err != nil {
				return 0, err
			}
		}
		// a concurrent creator may win; DoNothing keeps its row
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Sequence{Name: name, Value: start}).Error; err != nil {
			return 0, err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).Take(&seq).Error
	}
	if err != nil {
		return 0, err
	}

	next := seq.Value + 1
	if err := tx.Model(&Sequence{}).Where("name = ?", name).Update("value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func seedFromCount(model interface{}) seedFunc {
	return func(tx *gorm.DB) (int64, error) {
		var count int64
		err := tx.Model(model).Count(&count).Error
		return count, err
	}
}

func seedFromMaxIndex(itemType ItemType) seedFunc {
	return func(tx *gorm.DB) (int64, error) {
		var max sql.NullInt64
		err := tx.Model(&InventoryItem{}).Where("type = ?", itemType).Select("MAX(sequence_index)").Row().Scan(&max)
		if err != nil || !max.Valid {
			return 0, err
		}
		return max.Int64, nil
	}
}
