package service

import (
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"
)

// EligibilityDecision 单个上级在单个事件上的分佣资格结论
type EligibilityDecision struct {
	Eligible bool   // 是否计提佣金
	Frozen   bool   // 计提但冻结（上级订阅过期）
	Reason   string // 不计提时的原因标签
}

// EligibilityEvaluator 分佣资格评估器。
// 所有判断都以事件发生时点为准：订阅覆盖从订阅事件流还原，
// 直推人数按 bound_at 截止到时点统计，不看当前快照。
type EligibilityEvaluator struct {
	events   repository.SourceEventRepository
	networks repository.NetworkRepository
}

// NewEligibilityEvaluator 创建资格评估器
func NewEligibilityEvaluator(events repository.SourceEventRepository, networks repository.NetworkRepository) *EligibilityEvaluator {
	return &EligibilityEvaluator{events: events, networks: networks}
}

// EvaluateAncestor 评估指定上级在指定层级的分佣资格
func (e *EligibilityEvaluator) EvaluateAncestor(ancestor *models.Member, structure string, level int, at time.Time) (EligibilityDecision, error) {
	if ancestor == nil {
		return EligibilityDecision{Reason: constants.NoCommissionUnknown}, nil
	}
	if level > constants.StructureMaxLevel(structure) {
		return EligibilityDecision{Reason: constants.NoCommissionTooDeep}, nil
	}
	if ancestor.Status != constants.MemberStatusActive {
		return EligibilityDecision{Reason: constants.NoCommissionSponsorInactive}, nil
	}

	// 消费网络不要求订阅，活跃账号即计提
	if structure == constants.StructureProduct {
		return EligibilityDecision{Eligible: true}, nil
	}

	covered, err := e.events.HasSubscriptionCoverageAt(ancestor.ID, at)
	if err != nil {
		return EligibilityDecision{}, err
	}
	if !covered {
		everPaid, err := e.events.HasSubscriptionBefore(ancestor.ID, at)
		if err != nil {
			return EligibilityDecision{}, err
		}
		// 从未缴纳订阅：直接跳过；曾缴纳但过期：计提并冻结，复购后解冻
		if !everPaid {
			return EligibilityDecision{Reason: constants.NoCommissionSubscriptionNotActive}, nil
		}
	}

	if level >= 2 {
		threshold := constants.SubscriptionUnlockThresholds[level]
		count, err := e.networks.CountDirectReferralsAt(ancestor.ID, constants.StructureSubscription, at)
		if err != nil {
			return EligibilityDecision{}, err
		}
		if count < int64(threshold) {
			return EligibilityDecision{Reason: constants.NoCommissionLevelLocked(level)}, nil
		}
	}

	return EligibilityDecision{Eligible: true, Frozen: !covered}, nil
}

// UnlockedLevel 返回合伙人在指定时点已解锁的最深订阅层级
func (e *EligibilityEvaluator) UnlockedLevel(memberID uint, at time.Time) (int, error) {
	count, err := e.networks.CountDirectReferralsAt(memberID, constants.StructureSubscription, at)
	if err != nil {
		return 0, err
	}
	unlocked := 1
	for level := 2; level <= constants.MaxLevelSubscription; level++ {
		if count >= int64(constants.SubscriptionUnlockThresholds[level]) {
			unlocked = level
		}
	}
	return unlocked, nil
}
