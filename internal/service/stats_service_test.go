package service

import (
	"errors"
	"testing"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
)

func newStatsServiceTest(env *svcTestEnv) *StatsService {
	return NewStatsService(env.members, env.networks, env.ledger, env.rules, env.events, env.evaluator)
}

func TestResolveNetworkProjection(t *testing.T) {
	env, b, event := reconcileFixture(t)
	svc := newStatsServiceTest(env)

	if err := env.db.Model(&models.Member{}).Where("id = ?", event.MemberID).Update("monthly_active", true).Error; err != nil {
		t.Fatalf("mark monthly active failed: %v", err)
	}
	var buyer models.Member
	if err := env.db.First(&buyer, event.MemberID).Error; err != nil {
		t.Fatalf("load buyer failed: %v", err)
	}

	view, err := svc.ResolveNetwork(b.ID, constants.StructureSubscription, constants.MaxLevelSubscription)
	if err != nil {
		t.Fatalf("resolve network failed: %v", err)
	}
	if view.TotalMembers != 1 || len(view.Members) != 1 {
		t.Fatalf("view = %+v, want exactly the buyer", view)
	}

	member := view.Members[0]
	if member.MemberID != buyer.ID || member.Level != 1 {
		t.Fatalf("member = %+v, want buyer at level 1", member)
	}
	if member.ParentPartnerID != b.ID {
		t.Fatalf("parent_partner_id = %d, want %d", member.ParentPartnerID, b.ID)
	}
	if member.ReferralCode != buyer.ReferralCode {
		t.Fatalf("referral_code = %q, want %q", member.ReferralCode, buyer.ReferralCode)
	}
	if !member.MonthlyActivationMet {
		t.Fatal("monthly_activation_met = false, want true")
	}
	if !member.HasCommissionReceived || member.NoCommissionReason != "" {
		t.Fatalf("member = %+v, want commission received without reason", member)
	}

	t.Run("unknown root", func(t *testing.T) {
		_, err := svc.ResolveNetwork(99999, constants.StructureSubscription, constants.MaxLevelSubscription)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}
