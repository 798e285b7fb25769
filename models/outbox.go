package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Domain events.
const (
	EventQuotationCreated   = "quotation.created"
	EventQuotationDeleted   = "quotation.deleted"
	EventPaymentAdded       = "payment.added"
	EventReturnProcessed    = "return.processed"
	EventSalaryPosted       = "salary.posted"
	EventExpenseMonthClosed = "expense_month.closed"
)

type OutboxEvent struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType        string     `gorm:"size:50;not null;index" json:"event_type"`
	AggregateType    string     `gorm:"size:50;not null" json:"aggregate_type"`
	AggregateId      string     `gorm:"size:50;not null;index" json:"aggregate_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishEvent writes the event inside the caller's transaction. Nothing is
// sent to Pub/Sub here; the outbox dispatcher publishes after commit.
func PublishEvent(ctx context.Context, tx *gorm.DB, eventType string, aggregateType string, aggregateId string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateId:   aggregateId,
		Payload:       data,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToEventMessage(record OutboxEvent) config.EventMessage {
	return config.EventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		AggregateType: record.AggregateType,
		AggregateId:   record.AggregateId,
		OccurredAt:    record.CreatedAt,
		Payload:       json.RawMessage(record.Payload),
		CorrelationId: record.CorrelationId,
	}
}

type OutboxFilter struct {
	Status    string
	EventType string
	Limit     int
}

// ListOutboxEvents returns the newest events first.
func ListOutboxEvents(ctx context.Context, filter OutboxFilter) ([]OutboxEvent, error) {
	db := config.GetDB().WithContext(ctx)
	if filter.Status != "" {
		db = db.Where("publish_status = ?", filter.Status)
	}
	if filter.EventType != "" {
		db = db.Where("event_type = ?", filter.EventType)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []OutboxEvent
	if err := db.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// RequeueOutboxEvent moves a FAILED or DEAD event back to PENDING.
func RequeueOutboxEvent(ctx context.Context, id int) error {
	res := config.GetDB().WithContext(ctx).Model(&OutboxEvent{}).
		Where("id = ? AND publish_status IN ?", id, []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  nil,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundErrorf("no failed outbox event %d", id)
	}
	return nil
}
