package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/workflow"
	"gorm.io/gorm"
)

func setupDispatcher(t *testing.T, publish workflow.PublishFunc) (*workflow.OutboxDispatcher, context.Context) {
	t.Helper()
	conn, err := config.OpenSQLite(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	config.SetDB(conn)
	models.MigrateTable()
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})

	d := workflow.NewOutboxDispatcher(conn, config.GetLogger())
	d.Publish = publish
	return d, context.Background()
}

func writeEvent(t *testing.T, ctx context.Context, aggregateId string) {
	t.Helper()
	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		return models.PublishEvent(ctx, tx, models.EventQuotationCreated, "quotation", aggregateId, map[string]string{"quotationId": aggregateId})
	})
	if err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
}

func eventsWithStatus(t *testing.T, ctx context.Context, status string) []models.OutboxEvent {
	t.Helper()
	events, err := models.ListOutboxEvents(ctx, models.OutboxFilter{Status: status})
	if err != nil {
		t.Fatalf("ListOutboxEvents: %v", err)
	}
	return events
}

func TestDispatchOncePublishesPendingEvents(t *testing.T) {
	var published []config.EventMessage
	d, ctx := setupDispatcher(t, func(ctx context.Context, msg config.EventMessage) (string, error) {
		published = append(published, msg)
		return "msg-" + msg.AggregateId, nil
	})
	writeEvent(t, ctx, "INV-0001")
	writeEvent(t, ctx, "INV-0002")

	if sent := d.DispatchOnce(ctx); sent != 2 {
		t.Fatalf("expected 2 sent, got %d", sent)
	}
	if len(published) != 2 || published[0].AggregateId != "INV-0001" || published[0].EventType != models.EventQuotationCreated {
		t.Fatalf("unexpected published messages %+v", published)
	}
	if string(published[0].Payload) != `{"quotationId":"INV-0001"}` {
		t.Fatalf("unexpected payload %s", published[0].Payload)
	}

	sent := eventsWithStatus(t, ctx, models.OutboxPublishStatusSent)
	if len(sent) != 2 {
		t.Fatalf("expected 2 SENT events, got %d", len(sent))
	}
	if sent[0].PubSubMessageId == nil || *sent[0].PubSubMessageId != "msg-INV-0002" {
		t.Fatalf("message id not stored: %+v", sent[0].PubSubMessageId)
	}

	if again := d.DispatchOnce(ctx); again != 0 {
		t.Fatalf("sent events were dispatched again (%d)", again)
	}
}

func TestDispatchOnceBacksOffAndRequeues(t *testing.T) {
	fail := true
	d, ctx := setupDispatcher(t, func(ctx context.Context, msg config.EventMessage) (string, error) {
		if fail {
			return "", errors.New("broker unavailable")
		}
		return "msg-1", nil
	})
	writeEvent(t, ctx, "INV-0001")

	if sent := d.DispatchOnce(ctx); sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
	failed := eventsWithStatus(t, ctx, models.OutboxPublishStatusFailed)
	if len(failed) != 1 {
		t.Fatalf("expected 1 FAILED event, got %d", len(failed))
	}
	if failed[0].PublishAttempts != 1 || failed[0].NextAttemptAt == nil || failed[0].LastPublishError == nil {
		t.Fatalf("failure not recorded: %+v", failed[0])
	}

	fail = false
	if sent := d.DispatchOnce(ctx); sent != 0 {
		t.Fatalf("event retried before its backoff elapsed")
	}

	if err := models.RequeueOutboxEvent(ctx, failed[0].ID); err != nil {
		t.Fatalf("RequeueOutboxEvent: %v", err)
	}
	if sent := d.DispatchOnce(ctx); sent != 1 {
		t.Fatalf("expected requeued event to be sent, got %d", sent)
	}
}

func TestDispatchOnceMarksDeadAfterMaxAttempts(t *testing.T) {
	d, ctx := setupDispatcher(t, func(ctx context.Context, msg config.EventMessage) (string, error) {
		return "", errors.New("permission denied")
	})
	d.MaxAttempts = 1
	writeEvent(t, ctx, "INV-0001")

	d.DispatchOnce(ctx)

	dead := eventsWithStatus(t, ctx, models.OutboxPublishStatusDead)
	if len(dead) != 1 {
		t.Fatalf("expected 1 DEAD event, got %d", len(dead))
	}
	if err := models.RequeueOutboxEvent(ctx, dead[0].ID); err != nil {
		t.Fatalf("RequeueOutboxEvent: %v", err)
	}
	if pending := eventsWithStatus(t, ctx, models.OutboxPublishStatusPending); len(pending) != 1 {
		t.Fatalf("expected event back in PENDING, got %d", len(pending))
	}
}
