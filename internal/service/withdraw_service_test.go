package service

import (
	"errors"
	"testing"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
)

func newWithdrawServiceTest(t *testing.T) (*svcTestEnv, *WithdrawService) {
	t.Helper()
	env := newServiceTestEnv(t, defaultCommissionConfig())
	svc := NewWithdrawService(env.withdraws, env.members, env.balances, config.WithdrawConfig{
		MinAmount: 1000,
		Channels:  []string{"kaspi", "halyk"},
	})
	return env, svc
}

func TestWithdrawApply(t *testing.T) {
	env, svc := newWithdrawServiceTest(t)
	member := env.createMember(t, "提现合伙人")
	env.addLedgerEntry(t, member.ID, 5000, constants.CommissionStatusCompleted, nil)

	t.Run("below minimum", func(t *testing.T) {
		_, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 500, Channel: "kaspi", Account: "acc"})
		if !errors.Is(err, ErrWithdrawBelowMin) {
			t.Fatalf("err = %v, want ErrWithdrawBelowMin", err)
		}
	})

	t.Run("unsupported channel", func(t *testing.T) {
		_, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 2000, Channel: "paypal", Account: "acc"})
		if !errors.Is(err, ErrWithdrawChannel) {
			t.Fatalf("err = %v, want ErrWithdrawChannel", err)
		}
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 2000, Channel: "kaspi", Account: "  "})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		_, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 6000, Channel: "kaspi", Account: "acc"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("success reserves balance", func(t *testing.T) {
		request, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 3000, Channel: "kaspi", Account: "KZ123"})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if request.Status != constants.WithdrawStatusPendingReview || request.RequestNo == "" {
			t.Fatalf("request = %+v, want pending_review with request no", request)
		}

		balance, err := env.balances.GetBalance(member.ID)
		if err != nil {
			t.Fatalf("get balance failed: %v", err)
		}
		if balance.Available != 2000 {
			t.Fatalf("available = %d, want 2000 after reservation", balance.Available)
		}

		// 在途申请占用额度，超出部分拒绝
		_, err = svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 2500, Channel: "kaspi", Account: "KZ123"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("disabled member", func(t *testing.T) {
		if err := env.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("status", constants.MemberStatusDisabled).Error; err != nil {
			t.Fatalf("disable member failed: %v", err)
		}
		_, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 1500, Channel: "kaspi", Account: "acc"})
		if !errors.Is(err, ErrMemberDisabled) {
			t.Fatalf("err = %v, want ErrMemberDisabled", err)
		}
	})
}

func TestWithdrawReview(t *testing.T) {
	env, svc := newWithdrawServiceTest(t)
	member := env.createMember(t, "审核合伙人")
	env.addLedgerEntry(t, member.ID, 5000, constants.CommissionStatusCompleted, nil)

	request, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 2000, Channel: "halyk", Account: "KZ456"})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	t.Run("reject releases reservation", func(t *testing.T) {
		reviewed, err := svc.Review(request.ID, constants.WithdrawActionReject, "资料不全", 7)
		if err != nil {
			t.Fatalf("review failed: %v", err)
		}
		if reviewed.Status != constants.WithdrawStatusRejected || reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != 7 {
			t.Fatalf("reviewed = %+v, want rejected by admin 7", reviewed)
		}

		balance, err := env.balances.GetBalance(member.ID)
		if err != nil {
			t.Fatalf("get balance failed: %v", err)
		}
		if balance.Available != 5000 {
			t.Fatalf("available = %d, want 5000 after rejection", balance.Available)
		}
	})

	t.Run("re-review rejected request", func(t *testing.T) {
		_, err := svc.Review(request.ID, constants.WithdrawActionPay, "", 7)
		if !errors.Is(err, ErrWithdrawNotReviewable) {
			t.Fatalf("err = %v, want ErrWithdrawNotReviewable", err)
		}
	})

	t.Run("pay marks withdrawn", func(t *testing.T) {
		second, err := svc.Apply(WithdrawApplyInput{MemberID: member.ID, Amount: 1500, Channel: "halyk", Account: "KZ456"})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		reviewed, err := svc.Review(second.ID, constants.WithdrawActionPay, "已打款", 7)
		if err != nil {
			t.Fatalf("review failed: %v", err)
		}
		if reviewed.Status != constants.WithdrawStatusPaid {
			t.Fatalf("status = %s, want paid", reviewed.Status)
		}

		balance, err := env.balances.GetBalance(member.ID)
		if err != nil {
			t.Fatalf("get balance failed: %v", err)
		}
		if balance.Available != 3500 || balance.Withdrawn != 1500 {
			t.Fatalf("balance = %+v, want available 3500 withdrawn 1500", balance)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := svc.Review(99999, constants.WithdrawActionPay, "", 7)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}
