package service

import (
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
)

func TestEvaluateAncestor(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)

	active := env.createMember(t, "活跃上级")
	env.addSubscriptionEvent(t, active.ID, now.Add(-24*time.Hour), 30)

	t.Run("disabled member never earns", func(t *testing.T) {
		member := env.createMember(t, "停用上级")
		member.Status = constants.MemberStatusDisabled
		decision, err := env.evaluator.EvaluateAncestor(member, constants.StructureSubscription, 1, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if decision.Eligible || decision.Reason != constants.NoCommissionSponsorInactive {
			t.Fatalf("decision = %+v, want sponsor_inactive", decision)
		}
	})

	t.Run("product structure needs no subscription", func(t *testing.T) {
		member := env.createMember(t, "无订阅上级")
		decision, err := env.evaluator.EvaluateAncestor(member, constants.StructureProduct, 7, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if !decision.Eligible || decision.Frozen {
			t.Fatalf("decision = %+v, want eligible without freeze", decision)
		}
	})

	t.Run("level beyond structure cap", func(t *testing.T) {
		decision, err := env.evaluator.EvaluateAncestor(active, constants.StructureSubscription, 6, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if decision.Eligible || decision.Reason != constants.NoCommissionTooDeep {
			t.Fatalf("decision = %+v, want too_deep", decision)
		}
	})

	t.Run("never subscribed is skipped", func(t *testing.T) {
		member := env.createMember(t, "从未订阅")
		decision, err := env.evaluator.EvaluateAncestor(member, constants.StructureSubscription, 1, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if decision.Eligible || decision.Reason != constants.NoCommissionSubscriptionNotActive {
			t.Fatalf("decision = %+v, want subscription_not_active", decision)
		}
	})

	t.Run("lapsed subscription earns frozen", func(t *testing.T) {
		member := env.createMember(t, "订阅过期")
		env.addSubscriptionEvent(t, member.ID, now.Add(-90*24*time.Hour), 30)
		decision, err := env.evaluator.EvaluateAncestor(member, constants.StructureSubscription, 1, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if !decision.Eligible || !decision.Frozen {
			t.Fatalf("decision = %+v, want eligible frozen", decision)
		}
	})

	t.Run("level two locked until three directs", func(t *testing.T) {
		boundAt := now.Add(-48 * time.Hour)
		for i := 0; i < 2; i++ {
			child := env.createMember(t, "直推")
			env.linkSponsor(t, child.ID, active.ID, constants.StructureSubscription, boundAt)
		}
		decision, err := env.evaluator.EvaluateAncestor(active, constants.StructureSubscription, 2, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if decision.Eligible || decision.Reason != constants.NoCommissionLevelLocked(2) {
			t.Fatalf("decision = %+v, want level_2_locked with 2 directs", decision)
		}

		third := env.createMember(t, "第三个直推")
		env.linkSponsor(t, third.ID, active.ID, constants.StructureSubscription, boundAt)
		decision, err = env.evaluator.EvaluateAncestor(active, constants.StructureSubscription, 2, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if !decision.Eligible {
			t.Fatalf("decision = %+v, want eligible with 3 directs", decision)
		}
	})

	t.Run("direct count is evaluated at event time", func(t *testing.T) {
		member := env.createMember(t, "时点上级")
		env.addSubscriptionEvent(t, member.ID, now.Add(-48*time.Hour), 30)
		for i := 0; i < 3; i++ {
			child := env.createMember(t, "事件后直推")
			env.linkSponsor(t, child.ID, member.ID, constants.StructureSubscription, now.Add(time.Hour))
		}
		// 直推都在事件时点之后绑定，不算数
		decision, err := env.evaluator.EvaluateAncestor(member, constants.StructureSubscription, 2, now)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if decision.Eligible || decision.Reason != constants.NoCommissionLevelLocked(2) {
			t.Fatalf("decision = %+v, want level_2_locked before bindings took effect", decision)
		}
	})
}

func TestUnlockedLevel(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	now := time.Now().UTC().Truncate(time.Second)
	member := env.createMember(t, "解锁进度")

	addDirects := func(t *testing.T, count int) {
		t.Helper()
		for i := 0; i < count; i++ {
			child := env.createMember(t, "直推")
			env.linkSponsor(t, child.ID, member.ID, constants.StructureSubscription, now.Add(-time.Hour))
		}
	}

	check := func(t *testing.T, want int) {
		t.Helper()
		got, err := env.evaluator.UnlockedLevel(member.ID, now)
		if err != nil {
			t.Fatalf("unlocked level failed: %v", err)
		}
		if got != want {
			t.Fatalf("unlocked level = %d, want %d", got, want)
		}
	}

	check(t, 1) // 0 个直推
	addDirects(t, 3)
	check(t, 2) // 3 个直推解锁 L2
	addDirects(t, 2)
	check(t, 3) // 5 个解锁 L3
	addDirects(t, 3)
	check(t, 4) // 8 个解锁 L4
	addDirects(t, 2)
	check(t, 5) // 10 个解锁 L5
}

func TestEvaluateAncestorNilMember(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	decision, err := env.evaluator.EvaluateAncestor(nil, constants.StructureSubscription, 1, time.Now())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if decision.Eligible || decision.Reason != constants.NoCommissionUnknown {
		t.Fatalf("decision = %+v, want unknown reason", decision)
	}
}
