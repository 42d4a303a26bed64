package worker

import (
	"context"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/provider"
	"github.com/qaznet/partner-core/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

func TestRegisterNilSafe(t *testing.T) {
	var consumer *Consumer
	consumer.Register(nil)
	consumer.Register(asynq.NewServeMux())
	NewConsumer(&provider.Container{}).Register(nil)
}

func TestHandleCommissionDistributeCreatesLedgerEntry(t *testing.T) {
	db, container := setupWorkerTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	sponsor := mustWorkerMember(t, db, "上级")
	buyer := mustWorkerMember(t, db, "买家")
	link := models.SponsorLink{
		MemberID:      buyer.ID,
		SponsorID:     sponsor.ID,
		StructureType: constants.StructureSubscription,
		BoundAt:       now.Add(-48 * time.Hour),
		BoundBy:       "referral",
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("create link failed: %v", err)
	}
	rule := models.CommissionRule{
		StructureType: constants.StructureSubscription,
		Level:         1,
		Percent:       decimal.NewFromInt(10),
		EffectiveFrom: now.Add(-72 * time.Hour),
	}
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	mustWorkerSubscriptionEvent(t, db, sponsor.ID, now.Add(-24*time.Hour))
	event := mustWorkerSubscriptionEvent(t, db, buyer.ID, now.Add(-time.Hour))

	consumer := NewConsumer(container)
	task, err := queue.NewCommissionDistributeTask(queue.CommissionDistributePayload{SourceEventID: event.ID})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleCommissionDistribute(context.Background(), task); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	var entry models.CommissionEntry
	if err := db.Where("source_event_id = ? AND recipient_id = ?", event.ID, sponsor.ID).First(&entry).Error; err != nil {
		t.Fatalf("load entry failed: %v", err)
	}
	if entry.Amount != 1000 || entry.Status != constants.CommissionStatusCompleted {
		t.Fatalf("entry = %+v, want 1000 completed", entry)
	}

	// 重复投递应当幂等
	if err := consumer.handleCommissionDistribute(context.Background(), task); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.CommissionEntry{}).Where("source_event_id = ?", event.ID).Count(&count).Error; err != nil {
		t.Fatalf("count entries failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("entry count = %d, want 1 after redelivery", count)
	}
}

func TestHandleCommissionDistributeBadPayload(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	task := asynq.NewTask(queue.TaskCommissionDistribute, []byte("{not json"))
	if err := consumer.handleCommissionDistribute(context.Background(), task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestHandleCommissionDistributeZeroEventSkipped(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	task, err := queue.NewCommissionDistributeTask(queue.CommissionDistributePayload{})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	// 非法事件 ID 不应重试
	if err := consumer.handleCommissionDistribute(context.Background(), task); err != nil {
		t.Fatalf("expected zero event id to be dropped, got %v", err)
	}
}

func TestHandleEventReverseZeroEventSkipped(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	task, err := queue.NewEventReverseTask(queue.EventReversePayload{Note: "回滚"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleEventReverse(context.Background(), task); err != nil {
		t.Fatalf("expected zero event id to be dropped, got %v", err)
	}
}

func TestHandleEventReverseNilTask(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	if err := consumer.handleEventReverse(context.Background(), nil); err != nil {
		t.Fatalf("expected nil task to be dropped, got %v", err)
	}
}
