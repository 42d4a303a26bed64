package service

import (
	"errors"
	"testing"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"

	"github.com/shopspring/decimal"
)

func TestCreateRuleVersionValidation(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	svc := NewRuleService(env.rules)

	cases := []struct {
		name  string
		input RuleVersionInput
		want  error
	}{
		{
			name:  "bad structure",
			input: RuleVersionInput{StructureType: "bonus", Level: 1, Percent: decimal.NewFromInt(10)},
			want:  ErrInvalidStructure,
		},
		{
			name:  "subscription level above cap",
			input: RuleVersionInput{StructureType: constants.StructureSubscription, Level: 6, Percent: decimal.NewFromInt(1)},
			want:  ErrRuleLevelRange,
		},
		{
			name:  "zero level",
			input: RuleVersionInput{StructureType: constants.StructureProduct, Level: 0, Percent: decimal.NewFromInt(1)},
			want:  ErrRuleLevelRange,
		},
		{
			name:  "zero percent",
			input: RuleVersionInput{StructureType: constants.StructureSubscription, Level: 1, Percent: decimal.Zero},
			want:  ErrRulePercentRange,
		},
		{
			name:  "percent above hundred",
			input: RuleVersionInput{StructureType: constants.StructureSubscription, Level: 1, Percent: decimal.NewFromInt(101)},
			want:  ErrRulePercentRange,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateVersion(tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("product level ten allowed", func(t *testing.T) {
		rule, err := svc.CreateVersion(RuleVersionInput{
			StructureType: constants.StructureProduct,
			Level:         10,
			Percent:       decimal.RequireFromString("0.25"),
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if rule.ID == 0 || rule.EffectiveFrom.IsZero() {
			t.Fatalf("rule = %+v, want persisted with effective_from defaulted", rule)
		}
	})
}

func TestActiveRuleSetPointInTime(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	svc := NewRuleService(env.rules)
	base := time.Now().UTC().Truncate(time.Second).Add(-72 * time.Hour)

	// v1 生效于 base，v2 生效于 base+48h
	for _, v := range []struct {
		percent       string
		effectiveFrom time.Time
	}{
		{"10", base},
		{"12", base.Add(48 * time.Hour)},
	} {
		if _, err := svc.CreateVersion(RuleVersionInput{
			StructureType: constants.StructureSubscription,
			Level:         1,
			Percent:       decimal.RequireFromString(v.percent),
			EffectiveFrom: v.effectiveFrom,
		}); err != nil {
			t.Fatalf("create version failed: %v", err)
		}
	}
	if _, err := svc.CreateVersion(RuleVersionInput{
		StructureType: constants.StructureSubscription,
		Level:         2,
		Percent:       decimal.NewFromInt(5),
		EffectiveFrom: base,
	}); err != nil {
		t.Fatalf("create L2 failed: %v", err)
	}

	t.Run("old events hit old version", func(t *testing.T) {
		rules, err := svc.ActiveRuleSet(constants.StructureSubscription, base.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("active rule set failed: %v", err)
		}
		if !rules[1].Equal(decimal.NewFromInt(10)) {
			t.Fatalf("L1 percent = %s, want 10", rules[1])
		}
		if !rules[2].Equal(decimal.NewFromInt(5)) {
			t.Fatalf("L2 percent = %s, want 5", rules[2])
		}
	})

	t.Run("new events hit new version", func(t *testing.T) {
		rules, err := svc.ActiveRuleSet(constants.StructureSubscription, base.Add(49*time.Hour))
		if err != nil {
			t.Fatalf("active rule set failed: %v", err)
		}
		if !rules[1].Equal(decimal.NewFromInt(12)) {
			t.Fatalf("L1 percent = %s, want 12", rules[1])
		}
	})

	t.Run("before any version", func(t *testing.T) {
		rules, err := svc.ActiveRuleSet(constants.StructureSubscription, base.Add(-time.Hour))
		if err != nil {
			t.Fatalf("active rule set failed: %v", err)
		}
		if len(rules) != 0 {
			t.Fatalf("rules = %v, want empty before first version", rules)
		}
	})
}

func TestSeedDefaultRules(t *testing.T) {
	env := newServiceTestEnv(t, defaultCommissionConfig())
	svc := NewRuleService(env.rules)
	now := time.Now()

	if err := svc.SeedDefaultRules(now); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	var count int64
	if err := env.db.Model(&models.CommissionRule{}).Count(&count).Error; err != nil {
		t.Fatalf("count rules failed: %v", err)
	}
	// 订阅 5 级 + 消费 10 级
	if count != 15 {
		t.Fatalf("rule count = %d, want 15", count)
	}

	t.Run("seed again is a no-op", func(t *testing.T) {
		if err := svc.SeedDefaultRules(now); err != nil {
			t.Fatalf("second seed failed: %v", err)
		}
		if err := env.db.Model(&models.CommissionRule{}).Count(&count).Error; err != nil {
			t.Fatalf("count rules failed: %v", err)
		}
		if count != 15 {
			t.Fatalf("rule count = %d, want 15 after reseed", count)
		}
	})
}
