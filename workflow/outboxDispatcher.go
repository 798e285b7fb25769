package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxBackoff = 10 * time.Minute

// PublishFunc sends one event and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.EventMessage) (string, error)

// OutboxDispatcher moves committed outbox rows (quotations, payments, returns,
// salaries, closed expense months) to Pub/Sub. Several instances can run at
// once; each claims its own batch with SKIP LOCKED.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      PublishFunc

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

// NewOutboxDispatcher reads its tuning from env:
// - OUTBOX_BATCH_SIZE (default 50)
// - OUTBOX_POLL_MS (default 1000)
// - OUTBOX_MAX_ATTEMPTS (default 20)
func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishEventWithResult,
		BatchSize:      config.IntFromEnv("OUTBOX_BATCH_SIZE", 50),
		PollInterval:   time.Duration(config.IntFromEnv("OUTBOX_POLL_MS", 1000)) * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    config.IntFromEnv("OUTBOX_MAX_ATTEMPTS", 20),
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		wait := d.PollInterval
		if d.DispatchOnce(ctx) >= d.BatchSize {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// DispatchOnce claims one batch and publishes it. It returns the number of
// events sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil {
		return 0
	}
	claimed, err := d.claimBatch(ctx, time.Now().UTC())
	if err != nil {
		config.LogError(d.Logger, "workflow", "OutboxDispatcher", "claim batch", d.DispatcherID, err)
		return 0
	}

	sent := 0
	for _, event := range claimed {
		msgID, err := d.Publish(ctx, models.ConvertToEventMessage(event))
		if err != nil {
			d.recordFailure(ctx, event, err)
			continue
		}
		d.release(ctx, event.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       time.Now().UTC(),
			"pub_sub_message_id": msgID,
		})
		sent++
	}
	if sent > 0 && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{"field": "OutboxDispatcher", "sent": sent, "claimed": len(claimed)}).Debug("outbox batch published")
	}
	return sent
}

// claimBatch locks due PENDING/FAILED rows plus PROCESSING rows abandoned by
// a dead dispatcher. Rows already at MaxAttempts go straight to DEAD and are
// not returned.
func (d *OutboxDispatcher) claimBatch(ctx context.Context, now time.Time) ([]models.OutboxEvent, error) {
	var claimed []models.OutboxEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.OutboxEvent
		err := tx.
			Where("(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (publish_status = ? AND locked_at <= ?)",
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, now.Add(-d.LockTimeout)).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&due).Error
		if err != nil {
			return err
		}

		var live, exhausted []int
		for _, event := range due {
			if d.exhausted(event.PublishAttempts) {
				exhausted = append(exhausted, event.ID)
				continue
			}
			live = append(live, event.ID)
			event.PublishAttempts++
			claimed = append(claimed, event)
		}
		if len(exhausted) > 0 {
			msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
			if err := tx.Model(&models.OutboxEvent{}).Where("id IN ?", exhausted).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error; err != nil {
				return err
			}
		}
		if len(live) == 0 {
			return nil
		}
		return tx.Model(&models.OutboxEvent{}).Where("id IN ?", live).Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusProcessing,
			"locked_at":          now,
			"locked_by":          d.DispatcherID,
			"publish_attempts":   gorm.Expr("publish_attempts + 1"),
			"last_publish_error": nil,
			"next_attempt_at":    nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (d *OutboxDispatcher) exhausted(attempts int) bool {
	return d.MaxAttempts > 0 && attempts >= d.MaxAttempts
}

// recordFailure schedules the next attempt with exponential backoff, or
// parks the event as DEAD once its attempts are used up.
func (d *OutboxDispatcher) recordFailure(ctx context.Context, event models.OutboxEvent, publishErr error) {
	msg := publishErr.Error()
	fields := logrus.Fields{
		"field":      "OutboxDispatcher",
		"record_id":  event.ID,
		"event_type": event.EventType,
		"aggregate":  event.AggregateId,
		"attempt":    event.PublishAttempts,
	}

	if d.exhausted(event.PublishAttempts) {
		d.release(ctx, event.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusDead,
			"last_publish_error": msg,
		})
		if d.Logger != nil {
			d.Logger.WithFields(fields).Error("outbox publish moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(backoffFor(d.InitialBackoff, event.PublishAttempts))
	d.release(ctx, event.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": msg,
		"next_attempt_at":    next,
	})
	if d.Logger != nil {
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
		d.Logger.WithFields(fields).Warn("outbox publish failed: " + msg)
	}
}

// release clears the claim and applies the outcome columns.
func (d *OutboxDispatcher) release(ctx context.Context, id int, outcome map[string]interface{}) {
	updates := map[string]interface{}{
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	for k, v := range outcome {
		updates[k] = v
	}
	if err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		config.LogError(d.Logger, "workflow", "OutboxDispatcher", "release", id, err)
	}
}

// backoffFor doubles initial once per earlier attempt, capped at maxBackoff.
func backoffFor(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
