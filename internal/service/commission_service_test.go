package service

import (
	"errors"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
)

func defaultCommissionConfig() config.CommissionConfig {
	return config.CommissionConfig{
		SubscriptionPeriodDays: 30,
		BackfillBatchSize:      50,
		BackfillMaxWindowDays:  92,
	}
}

func TestRecordSourceEventValidation(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	member := env.createMember(t, "买家")
	env.seedRules(t, constants.StructureSubscription, time.Now().Add(-time.Hour), map[int]string{1: "10"})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
			MemberID:  member.ID,
			EventType: constants.SourceEventTypeSubscription,
			Amount:    0,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("unknown event type", func(t *testing.T) {
		_, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
			MemberID:  member.ID,
			EventType: "refund",
			Amount:    100,
		})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
			MemberID:  99999,
			EventType: constants.SourceEventTypeSubscription,
			Amount:    100,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate event no", func(t *testing.T) {
		input := RecordSourceEventInput{
			EventNo:   "EVT-DUP-1",
			MemberID:  member.ID,
			EventType: constants.SourceEventTypeSubscription,
			Amount:    5000,
		}
		if _, err := env.commissions.RecordSourceEvent(input); err != nil {
			t.Fatalf("first record failed: %v", err)
		}
		_, err := env.commissions.RecordSourceEvent(input)
		if !errors.Is(err, ErrEventDuplicated) {
			t.Fatalf("err = %v, want ErrEventDuplicated", err)
		}
	})
}

func TestDistributeSubscriptionCommission(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	root := env.createMember(t, "三级上级")
	a := env.createMember(t, "二级上级")
	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, a.ID, root.ID, constants.StructureSubscription, boundAt)
	env.linkSponsor(t, b.ID, a.ID, constants.StructureSubscription, boundAt)
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureSubscription, boundAt)

	// a 需要 3 个直推解锁 L2，补两个
	for i := 0; i < 2; i++ {
		extra := env.createMember(t, "直推补位")
		env.linkSponsor(t, extra.ID, a.ID, constants.StructureSubscription, boundAt)
	}

	// b、a 有订阅覆盖；root 从未缴纳订阅
	env.addSubscriptionEvent(t, b.ID, now.Add(-24*time.Hour), 30)
	env.addSubscriptionEvent(t, a.ID, now.Add(-24*time.Hour), 30)

	env.seedRules(t, constants.StructureSubscription, now.Add(-30*24*time.Hour), map[int]string{
		1: "10", 2: "5", 3: "3", 4: "2", 5: "1",
	})

	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		EventNo:    "EVT-SUB-100",
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeSubscription,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	stored, err := env.events.GetByID(event.ID)
	if err != nil {
		t.Fatalf("load event failed: %v", err)
	}
	if stored.Status != constants.SourceEventStatusDistributed {
		t.Fatalf("event status = %s, want distributed", stored.Status)
	}

	entries, err := env.ledger.ListEntriesByEvent(event.ID)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	byRecipient := map[uint]models.CommissionEntry{}
	for _, entry := range entries {
		byRecipient[entry.RecipientID] = entry
	}
	if entry := byRecipient[b.ID]; entry.Amount != 1000 || entry.Level != 1 || entry.Status != constants.CommissionStatusCompleted {
		t.Fatalf("L1 entry = %+v, want amount 1000 completed", entry)
	}
	if entry := byRecipient[a.ID]; entry.Amount != 500 || entry.Level != 2 {
		t.Fatalf("L2 entry = %+v, want amount 500", entry)
	}

	skips, err := env.ledger.ListSkipsByEvent(event.ID)
	if err != nil {
		t.Fatalf("list skips failed: %v", err)
	}
	if len(skips) != 1 {
		t.Fatalf("skip count = %d, want 1", len(skips))
	}
	if skips[0].RecipientID != root.ID || skips[0].Reason != constants.NoCommissionSubscriptionNotActive {
		t.Fatalf("skip = %+v, want root skipped as subscription_not_active", skips[0])
	}

	t.Run("redistribution is idempotent", func(t *testing.T) {
		result, err := env.commissions.DistributeSourceEvent(event.ID)
		if err != nil {
			t.Fatalf("redistribute failed: %v", err)
		}
		if result.EntriesCreated != 0 || result.SkipsRecorded != 0 {
			t.Fatalf("redistribute created entries=%d skips=%d, want 0/0", result.EntriesCreated, result.SkipsRecorded)
		}
		if result.Duplicates != 3 {
			t.Fatalf("duplicates = %d, want 3", result.Duplicates)
		}
		if count := env.countEntries(t, event.ID); count != 2 {
			t.Fatalf("entry count after redistribute = %d, want 2", count)
		}
	})
}

func TestDistributionLevelLockedByDirectReferrals(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	a := env.createMember(t, "二级上级")
	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, b.ID, a.ID, constants.StructureSubscription, boundAt)
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureSubscription, boundAt)
	env.addSubscriptionEvent(t, a.ID, now.Add(-24*time.Hour), 30)
	env.addSubscriptionEvent(t, b.ID, now.Add(-24*time.Hour), 30)
	env.seedRules(t, constants.StructureSubscription, now.Add(-time.Hour*24), map[int]string{1: "10", 2: "5"})

	// a 只有 1 个直推，L2 未解锁
	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeSubscription,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	skips, err := env.ledger.ListSkipsByEvent(event.ID)
	if err != nil {
		t.Fatalf("list skips failed: %v", err)
	}
	if len(skips) != 1 || skips[0].RecipientID != a.ID || skips[0].Reason != constants.NoCommissionLevelLocked(2) {
		t.Fatalf("skips = %+v, want a skipped as level_2_locked", skips)
	}
	if count := env.countEntries(t, event.ID); count != 1 {
		t.Fatalf("entry count = %d, want 1 (only L1)", count)
	}
}

func TestDistributionCapsAtEventAmount(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	a := env.createMember(t, "二级上级")
	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, b.ID, a.ID, constants.StructureProduct, boundAt)
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureProduct, boundAt)
	// 比例和超过 100%，末端层级截断
	env.seedRules(t, constants.StructureProduct, now.Add(-time.Hour), map[int]string{1: "60", 2: "50"})

	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeOrder,
		Amount:     1001,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	entries, err := env.ledger.ListEntriesByEvent(event.ID)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	var total int64
	byLevel := map[int]int64{}
	for _, entry := range entries {
		total += entry.Amount
		byLevel[entry.Level] = entry.Amount
	}
	if byLevel[1] != 601 { // 1001 * 60% = 600.6，逢五进一
		t.Fatalf("L1 amount = %d, want 601", byLevel[1])
	}
	if byLevel[2] != 400 { // 截断到事件金额
		t.Fatalf("L2 amount = %d, want 400", byLevel[2])
	}
	if total != event.Amount {
		t.Fatalf("total = %d, want event amount %d", total, event.Amount)
	}
}

func TestMarketingExemptBuyerProducesNoCommission(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "市场赠送账号")
	if err := env.db.Model(&models.Member{}).Where("id = ?", buyer.ID).Update("marketing_exempt", true).Error; err != nil {
		t.Fatalf("mark marketing exempt failed: %v", err)
	}
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureProduct, boundAt)
	env.seedRules(t, constants.StructureProduct, now.Add(-time.Hour), map[int]string{1: "5"})

	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeOrder,
		Amount:     20000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	if count := env.countEntries(t, event.ID); count != 0 {
		t.Fatalf("entry count = %d, want 0", count)
	}
	skips, err := env.ledger.ListSkipsByEvent(event.ID)
	if err != nil {
		t.Fatalf("list skips failed: %v", err)
	}
	if len(skips) != 1 || skips[0].Reason != constants.NoCommissionMarketingFreeAccess {
		t.Fatalf("skips = %+v, want marketing_free_access", skips)
	}
}

func TestLapsedAncestorFrozenAndThawedOnResubscription(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-120 * 24 * time.Hour)

	b := env.createMember(t, "过期上级")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureSubscription, boundAt)
	// b 曾缴纳订阅但已过期
	env.addSubscriptionEvent(t, b.ID, now.Add(-60*24*time.Hour), 30)
	env.seedRules(t, constants.StructureSubscription, now.Add(-90*24*time.Hour), map[int]string{1: "10"})

	occurredAt := now.Add(-time.Hour)
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeSubscription,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	entries, err := env.ledger.ListEntriesByEvent(event.ID)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != constants.CommissionStatusFrozen {
		t.Fatalf("entries = %+v, want single frozen entry", entries)
	}
	if entries[0].FrozenUntil != nil {
		t.Fatal("frozen_until should be nil when freeze_days is 0 (thaw on resubscription only)")
	}

	// b 复购订阅，冻结佣金自动解冻
	if _, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:  b.ID,
		EventType: constants.SourceEventTypeSubscription,
		Amount:    10000,
	}); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}

	thawed, err := env.ledger.GetEntry(event.ID, b.ID, 1, constants.StructureSubscription, constants.CommissionKindLevel)
	if err != nil {
		t.Fatalf("load entry failed: %v", err)
	}
	if thawed.Status != constants.CommissionStatusCompleted {
		t.Fatalf("entry status = %s, want completed after resubscription", thawed.Status)
	}
	if thawed.ThawedAt == nil {
		t.Fatal("thawed_at not set")
	}
}

func TestReverseSourceEvent(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureProduct, boundAt)
	env.seedRules(t, constants.StructureProduct, now.Add(-time.Hour), map[int]string{1: "5"})

	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeOrder,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	if err := env.commissions.ReverseSourceEvent(event.ID, "订单退款"); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	stored, err := env.events.GetByID(event.ID)
	if err != nil {
		t.Fatalf("load event failed: %v", err)
	}
	if stored.Status != constants.SourceEventStatusReversed {
		t.Fatalf("event status = %s, want reversed", stored.Status)
	}

	reversal, err := env.ledger.GetEntry(event.ID, b.ID, 1, constants.StructureProduct, constants.CommissionKindReversal)
	if err != nil {
		t.Fatalf("load reversal failed: %v", err)
	}
	if reversal == nil || reversal.Amount != -500 {
		t.Fatalf("reversal = %+v, want amount -500", reversal)
	}

	t.Run("reverse again is a no-op", func(t *testing.T) {
		if err := env.commissions.ReverseSourceEvent(event.ID, "再次冲正"); err != nil {
			t.Fatalf("second reverse failed: %v", err)
		}
		if count := env.countEntries(t, event.ID); count != 2 {
			t.Fatalf("entry count = %d, want 2 (level + reversal)", count)
		}
	})

	t.Run("distribute after reversal rejected", func(t *testing.T) {
		_, err := env.commissions.DistributeSourceEvent(event.ID)
		if !errors.Is(err, ErrEventReversed) {
			t.Fatalf("err = %v, want ErrEventReversed", err)
		}
	})
}

func TestReverseFailsUnsettledEntries(t *testing.T) {
	cfg := defaultCommissionConfig()
	cfg.ConfirmDays = 7
	env := newServiceTestEnv(t, cfg)
	now := time.Now().UTC().Truncate(time.Second)
	boundAt := now.Add(-72 * time.Hour)

	b := env.createMember(t, "直接推荐人")
	buyer := env.createMember(t, "买家")
	env.linkSponsor(t, buyer.ID, b.ID, constants.StructureProduct, boundAt)
	env.seedRules(t, constants.StructureProduct, now.Add(-time.Hour), map[int]string{1: "5"})

	occurredAt := now
	event, err := env.commissions.RecordSourceEvent(RecordSourceEventInput{
		MemberID:   buyer.ID,
		EventType:  constants.SourceEventTypeOrder,
		Amount:     10000,
		OccurredAt: &occurredAt,
	})
	if err != nil {
		t.Fatalf("record event failed: %v", err)
	}

	entries, err := env.ledger.ListEntriesByEvent(event.ID)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != constants.CommissionStatusPending {
		t.Fatalf("entries = %+v, want single pending entry (confirm_days > 0)", entries)
	}
	if entries[0].ConfirmAt == nil {
		t.Fatal("confirm_at not set")
	}

	if err := env.commissions.ReverseSourceEvent(event.ID, "退款"); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	entry, err := env.ledger.GetEntry(event.ID, b.ID, 1, constants.StructureProduct, constants.CommissionKindLevel)
	if err != nil {
		t.Fatalf("load entry failed: %v", err)
	}
	if entry.Status != constants.CommissionStatusFailed {
		t.Fatalf("entry status = %s, want failed (pending entry reversed in place)", entry.Status)
	}
	// 未到账的条目不产生负额冲正
	if count := env.countEntries(t, event.ID); count != 1 {
		t.Fatalf("entry count = %d, want 1", count)
	}
}
