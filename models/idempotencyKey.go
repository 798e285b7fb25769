package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const idempotencyScopeQuotation = "quotation"

var errIdempotentReplay = errors.New("idempotent replay")

// IdempotencyKey maps a client request key to the record it produced.
// Unique constraint: (scope, request_key).
type IdempotencyKey struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Scope      string    `gorm:"size:50;not null;index:uniq_idem,unique" json:"scope"`
	RequestKey string    `gorm:"size:255;not null;index:uniq_idem,unique" json:"requestKey"`
	ResultRef  string    `gorm:"size:50" json:"resultRef"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// claimIdempotencyKey inserts the key inside tx and reports whether it was
// already used. A concurrent claim of the same key waits on the unique index
// until the first transaction commits or rolls back.
func claimIdempotencyKey(tx *gorm.DB, scope string, key string) (*IdempotencyKey, bool, error) {
	row := IdempotencyKey{Scope: scope, RequestKey: key}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &row, false, nil
	}
	var existing IdempotencyKey
	if err := tx.Where("scope = ? AND request_key = ?", scope, key).Take(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, true, nil
}

func recordIdempotencyResult(tx *gorm.DB, claim *IdempotencyKey, ref string) error {
	if claim == nil {
		return nil
	}
	return tx.Model(&IdempotencyKey{}).Where("id = ?", claim.ID).Update("result_ref", ref).Error
}
