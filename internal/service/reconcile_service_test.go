package service

import (
	"errors"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"

	"github.com/shopspring/decimal"
)

// reconcileFixture 准备一条已分佣的链：b <- buyer，b 在 L1 应得 1000
func reconcileFixture(t *testing.T) (*svcTestEnv, *models.Member, *models.SourceEvent) {
	t.Helper()
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureSubscription, boundAt)
	env.addSubscriptionEvent(t, b.ID, now.Add(-24*time.Hour), 30)
	env.seedRules(t, constants.StructureSubscription, now.Add(-30*24*time.Hour), map[int]string{1: "10"})

	occurredAt := now.Add(-time.Hour)
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		EventNo:    "EVT-RECON-1",
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeSubscription,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}
	return env, b, event
}

func TestAuditMemberCommissions(t *testing.T) {
	env, b, event := reconcileFixture(t)

	t.Run("intact ledger audits clean", func(t *testing.T) {
		report, err := env.reconcile.AuditMemberCommissions(b.ID)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if report.Total != 1 || report.OK != 1 || report.Missing != 0 {
			t.Fatalf("report = %+v, want 1 total all OK", report)
		}
	})

	t.Run("underpaid", func(t *testing.T) {
		if err := env.db.Model(&models.CommissionEntry{}).
			Where("source_event_id = ? AND recipient_id = ?", event.ID, b.ID).
			Update("amount", 600).Error; err != nil {
			t.Fatalf("tamper amount failed: %v", err)
		}
		report, err := env.reconcile.AuditMemberCommissions(b.ID)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if report.Underpaid != 1 {
			t.Fatalf("report = %+v, want 1 underpaid", report)
		}
		row := report.Rows[0]
		if row.Result != constants.AuditResultUnderpaid || row.Expected != 1000 || row.Actual != 600 {
			t.Fatalf("row = %+v, want UNDERPAID 1000/600", row)
		}
		// 结论行自带下级、事件金额与应发比例，无需回查事件表
		if row.PartnerID != event.MemberID || row.SubscriptionAmount != 10000 {
			t.Fatalf("row = %+v, want partner %d amount 10000", row, event.MemberID)
		}
		if !row.ExpectedPercent.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected percent = %s, want 10", row.ExpectedPercent)
		}
	})

	t.Run("overpaid", func(t *testing.T) {
		if err := env.db.Model(&models.CommissionEntry{}).
			Where("source_event_id = ? AND recipient_id = ?", event.ID, b.ID).
			Update("amount", 1500).Error; err != nil {
			t.Fatalf("tamper amount failed: %v", err)
		}
		report, err := env.reconcile.AuditMemberCommissions(b.ID)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if report.Overpaid != 1 {
			t.Fatalf("report = %+v, want 1 overpaid", report)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if err := env.db.Unscoped().
			Where("source_event_id = ? AND recipient_id = ?", event.ID, b.ID).
			Delete(&models.CommissionEntry{}).Error; err != nil {
			t.Fatalf("delete entry failed: %v", err)
		}
		report, err := env.reconcile.AuditMemberCommissions(b.ID)
		if err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if report.Missing != 1 {
			t.Fatalf("report = %+v, want 1 missing", report)
		}
		row := report.Rows[0]
		if row.Result != constants.AuditResultMissing || row.Expected != 1000 || row.Actual != 0 {
			t.Fatalf("row = %+v, want MISSING 1000/0", row)
		}
	})
}

func TestAuditReversedEventExpectsNothing(t *testing.T) {
	env, b, event := reconcileFixture(t)
	if err := env.commissions.ReverseSourceEvent(event.ID, "退款"); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	report, err := env.reconcile.AuditMemberCommissions(b.ID)
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	// level 条目与冲正条目净额为零，冲正后的事件应发也为零
	if report.Total != 1 || report.OK != 1 {
		t.Fatalf("report = %+v, want reversed event to audit OK", report)
	}
}

func TestBackfillDryRunSymmetry(t *testing.T) {
	env, b, event := reconcileFixture(t)
	if err := env.db.Unscoped().
		Where("source_event_id = ? AND recipient_id = ?", event.ID, b.ID).
		Delete(&models.CommissionEntry{}).Error; err != nil {
		t.Fatalf("delete entry failed: %v", err)
	}

	input := BackfillInput{
		From: time.Now().Add(-48 * time.Hour),
		To:   time.Now(),
	}

	input.DryRun = true
	dry, err := env.reconcile.Backfill(input)
	if err != nil {
		t.Fatalf("dry-run backfill failed: %v", err)
	}
	if dry.MissingEntries != 1 || dry.CreatedEntries != 0 {
		t.Fatalf("dry run = %+v, want 1 missing 0 created", dry)
	}
	if count := env.countEntries(t, event.ID); count != 0 {
		t.Fatalf("dry run wrote %d entries, want 0", count)
	}

	input.DryRun = false
	applied, err := env.reconcile.Backfill(input)
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if applied.MissingEntries != 1 || applied.CreatedEntries != 1 || applied.AmountCreated != 1000 {
		t.Fatalf("applied run = %+v, want 1 missing 1 created amount 1000", applied)
	}
	// dry-run 与实发的差异清单一致
	if len(dry.Details) != len(applied.Details) {
		t.Fatalf("details mismatch: dry %d vs applied %d", len(dry.Details), len(applied.Details))
	}
	for i := range dry.Details {
		if dry.Details[i] != applied.Details[i] {
			t.Fatalf("details[%d] mismatch: dry %+v vs applied %+v", i, dry.Details[i], applied.Details[i])
		}
	}

	created, err := env.ledger.GetEntry(event.ID, b.ID, 1, constants.StructureSubscription, constants.CommissionKindLevel)
	if err != nil {
		t.Fatalf("load entry failed: %v", err)
	}
	if created == nil || created.Amount != 1000 || created.Note != "backfill" {
		t.Fatalf("created entry = %+v, want amount 1000 note backfill", created)
	}

	t.Run("second run creates nothing", func(t *testing.T) {
		again, err := env.reconcile.Backfill(input)
		if err != nil {
			t.Fatalf("second backfill failed: %v", err)
		}
		if again.MissingEntries != 0 || again.CreatedEntries != 0 {
			t.Fatalf("second run = %+v, want nothing to do", again)
		}
		if count := env.countEntries(t, event.ID); count != 1 {
			t.Fatalf("entry count = %d, want 1", count)
		}
	})
}

func TestBackfillSkipsReversedEvents(t *testing.T) {
	env, b, event := reconcileFixture(t)
	if err := env.commissions.ReverseSourceEvent(event.ID, "退款"); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if err := env.db.Unscoped().
		Where("source_event_id = ? AND recipient_id = ? AND kind = ?", event.ID, b.ID, constants.CommissionKindLevel).
		Delete(&models.CommissionEntry{}).Error; err != nil {
		t.Fatalf("delete entry failed: %v", err)
	}

	result, err := env.reconcile.Backfill(BackfillInput{
		From: time.Now().Add(-48 * time.Hour),
		To:   time.Now(),
	})
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if result.MissingEntries != 0 || result.CreatedEntries != 0 {
		t.Fatalf("result = %+v, want reversed event excluded from replay", result)
	}
}

func TestBackfillWindowValidation(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now()

	t.Run("inverted window", func(t *testing.T) {
		_, err := env.reconcile.Backfill(BackfillInput{From: now, To: now.Add(-time.Hour)})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("window too wide", func(t *testing.T) {
		_, err := env.reconcile.Backfill(BackfillInput{From: now.Add(-100 * 24 * time.Hour), To: now})
		if !errors.Is(err, ErrBackfillWindowTooWide) {
			t.Fatalf("err = %v, want ErrBackfillWindowTooWide", err)
		}
	})
}
