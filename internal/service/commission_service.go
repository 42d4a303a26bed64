package service

import (
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/network"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DistributionEnqueuer 分佣任务入队接口（无队列时为 nil，走同步分佣）
type DistributionEnqueuer interface {
	EnqueueDistribute(eventID uint) error
	EnqueueReverse(eventID uint) error
}

// CommissionService 佣金计算与台账服务
type CommissionService struct {
	events    repository.SourceEventRepository
	members   repository.MemberRepository
	networks  repository.NetworkRepository
	ledger    repository.LedgerRepository
	rules     repository.RuleRepository
	evaluator *EligibilityEvaluator
	balances  *BalanceService
	cfg       config.CommissionConfig
	enqueuer  DistributionEnqueuer
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	events repository.SourceEventRepository,
	members repository.MemberRepository,
	networks repository.NetworkRepository,
	ledger repository.LedgerRepository,
	rules repository.RuleRepository,
	evaluator *EligibilityEvaluator,
	balances *BalanceService,
	cfg config.CommissionConfig,
	enqueuer DistributionEnqueuer,
) *CommissionService {
	return &CommissionService{
		events:    events,
		members:   members,
		networks:  networks,
		ledger:    ledger,
		rules:     rules,
		evaluator: evaluator,
		balances:  balances,
		cfg:       cfg,
		enqueuer:  enqueuer,
	}
}

// RecordSourceEventInput 来源事件录入参数
type RecordSourceEventInput struct {
	EventNo    string     // 外部幂等键，为空则自动生成
	MemberID   uint       // 产生事件的合伙人
	EventType  string     // subscription_payment / product_order
	Amount     int64      // 整数坚戈
	PeriodDays int        // 订阅覆盖天数，0 取默认值
	OccurredAt *time.Time // 业务发生时间，空取当前时间
}

// RecordSourceEvent 录入来源事件并触发分佣
func (s *CommissionService) RecordSourceEvent(input RecordSourceEventInput) (*models.SourceEvent, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var structure string
	switch input.EventType {
	case constants.SourceEventTypeSubscription:
		structure = constants.StructureSubscription
	case constants.SourceEventTypeOrder:
		structure = constants.StructureProduct
	default:
		return nil, ErrValidation
	}
	member, err := s.members.GetByID(input.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}

	eventNo := strings.TrimSpace(input.EventNo)
	if eventNo == "" {
		eventNo = "EVT-" + uuid.NewString()
	}
	occurredAt := time.Now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}
	periodDays := 0
	if input.EventType == constants.SourceEventTypeSubscription {
		periodDays = input.PeriodDays
		if periodDays <= 0 {
			periodDays = s.cfg.SubscriptionPeriodDays
		}
	}

	event := &models.SourceEvent{
		EventNo:       eventNo,
		MemberID:      input.MemberID,
		EventType:     input.EventType,
		StructureType: structure,
		Amount:        input.Amount,
		PeriodDays:    periodDays,
		Status:        constants.SourceEventStatusRecorded,
		OccurredAt:    occurredAt,
	}
	err = s.events.Transaction(func(tx *gorm.DB) error {
		if err := s.events.WithTx(tx).Create(event); err != nil {
			if isUniqueViolation(err) {
				return ErrEventDuplicated
			}
			return err
		}
		// 订阅缴费顺带刷新合伙人订阅快照（真实状态仍以事件流为准）
		if input.EventType == constants.SourceEventTypeSubscription {
			paidUntil := occurredAt.AddDate(0, 0, periodDays)
			if member.SubscriptionPaidUntil == nil || paidUntil.After(*member.SubscriptionPaidUntil) {
				updates := map[string]interface{}{
					"subscription_status":     constants.SubscriptionStatusActive,
					"subscription_paid_until": paidUntil,
				}
				if err := s.members.WithTx(tx).UpdateFields(member.ID, updates); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueDistribute(event.ID); err != nil {
			logger.Errorw("commission_distribute_enqueue_failed", "event_id", event.ID, "error", err)
			// 入队失败降级为同步分佣，保证事件不悬空
			if _, err := s.DistributeSourceEvent(event.ID); err != nil {
				return nil, err
			}
		}
	} else {
		if _, err := s.DistributeSourceEvent(event.ID); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// PlanItem 分佣计划中的单行（实发或跳过二选一）
type PlanItem struct {
	RecipientID uint            `json:"recipient_id"`
	Level       int             `json:"level"`
	Percent     decimal.Decimal `json:"percent"`
	Amount      int64           `json:"amount"`
	Frozen      bool            `json:"frozen"`
	Reason      string          `json:"reason,omitempty"` // 非空表示跳过
}

// DistributionPlan 事件的完整分佣计划
type DistributionPlan struct {
	SourceEventID uint       `json:"source_event_id"`
	StructureType string     `json:"structure_type"`
	EventAmount   int64      `json:"event_amount"`
	TotalPayable  int64      `json:"total_payable"`
	Items         []PlanItem `json:"items"`
}

// PlanDistribution 按事件发生时点的规则与网络状态计算分佣计划。
// 纯计算不落库：分佣、对账、补发共用同一份计划，保证 dry-run 与实发一致。
func (s *CommissionService) PlanDistribution(event *models.SourceEvent) (*DistributionPlan, error) {
	if event == nil {
		return nil, ErrNotFound
	}
	plan := &DistributionPlan{
		SourceEventID: event.ID,
		StructureType: event.StructureType,
		EventAmount:   event.Amount,
		Items:         []PlanItem{},
	}

	buyer, err := s.members.GetByID(event.MemberID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, ErrNotFound
	}

	ruleSet, err := s.rules.ActiveRuleSetAt(event.StructureType, event.OccurredAt)
	if err != nil {
		return nil, err
	}
	if len(ruleSet) == 0 {
		return nil, ErrRuleNotConfigured
	}

	resolver := network.NewResolver(s.networks)
	maxLevels := constants.StructureMaxLevel(event.StructureType)
	chain, err := resolver.AncestorChainAt(event.MemberID, event.StructureType, event.OccurredAt, maxLevels)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return plan, nil
	}

	ancestorIDs := make([]uint, 0, len(chain))
	for _, ancestor := range chain {
		ancestorIDs = append(ancestorIDs, ancestor.MemberID)
	}
	ancestors, err := s.members.GetBatch(ancestorIDs)
	if err != nil {
		return nil, err
	}

	// 市场赠送账号的消费不向上产生佣金
	if buyer.MarketingExempt {
		for _, ancestor := range chain {
			plan.Items = append(plan.Items, PlanItem{
				RecipientID: ancestor.MemberID,
				Level:       ancestor.Level,
				Reason:      constants.NoCommissionMarketingFreeAccess,
			})
		}
		return plan, nil
	}

	var payable int64
	for _, ancestor := range chain {
		percent, hasRule := ruleSet[ancestor.Level]
		if !hasRule {
			plan.Items = append(plan.Items, PlanItem{
				RecipientID: ancestor.MemberID,
				Level:       ancestor.Level,
				Reason:      constants.NoCommissionTooDeep,
			})
			continue
		}
		member := ancestors[ancestor.MemberID]
		decision, err := s.evaluator.EvaluateAncestor(&member, event.StructureType, ancestor.Level, event.OccurredAt)
		if err != nil {
			return nil, err
		}
		if !decision.Eligible {
			plan.Items = append(plan.Items, PlanItem{
				RecipientID: ancestor.MemberID,
				Level:       ancestor.Level,
				Reason:      decision.Reason,
			})
			continue
		}
		amount := models.PercentOf(event.Amount, percent)
		// 累计佣金不得超过事件金额，超出部分在末端层级截断
		if payable+amount > event.Amount {
			amount = event.Amount - payable
		}
		if amount <= 0 {
			continue
		}
		payable += amount
		plan.Items = append(plan.Items, PlanItem{
			RecipientID: ancestor.MemberID,
			Level:       ancestor.Level,
			Percent:     percent,
			Amount:      amount,
			Frozen:      decision.Frozen,
		})
	}
	plan.TotalPayable = payable
	return plan, nil
}

// DistributionResult 分佣执行结果
type DistributionResult struct {
	SourceEventID  uint  `json:"source_event_id"`
	EntriesCreated int   `json:"entries_created"`
	SkipsRecorded  int   `json:"skips_recorded"`
	Duplicates     int   `json:"duplicates"`
	TotalPaid      int64 `json:"total_paid"`
}

// DistributeSourceEvent 执行事件分佣。
// 台账唯一索引保证幂等：重复执行时冲突行静默跳过，不产生第二份佣金。
func (s *CommissionService) DistributeSourceEvent(eventID uint) (*DistributionResult, error) {
	result := &DistributionResult{SourceEventID: eventID}
	err := s.events.Transaction(func(tx *gorm.DB) error {
		eventRepo := s.events.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		event, err := eventRepo.GetByIDForUpdate(eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return ErrNotFound
		}
		if event.Status == constants.SourceEventStatusReversed {
			return ErrEventReversed
		}

		plan, err := s.withTx(tx).PlanDistribution(event)
		if err != nil {
			return err
		}

		now := time.Now()
		for _, item := range plan.Items {
			if item.Reason != "" {
				skip := &models.CommissionSkip{
					SourceEventID: event.ID,
					RecipientID:   item.RecipientID,
					Level:         item.Level,
					StructureType: event.StructureType,
					Reason:        item.Reason,
				}
				if err := ledgerRepo.CreateSkip(skip); err != nil {
					if isUniqueViolation(err) {
						result.Duplicates++
						continue
					}
					return err
				}
				result.SkipsRecorded++
				continue
			}

			entry := s.buildEntry(event, item, now)
			if err := ledgerRepo.CreateEntry(entry); err != nil {
				if isUniqueViolation(err) {
					result.Duplicates++
					continue
				}
				return err
			}
			result.EntriesCreated++
			result.TotalPaid += entry.Amount
		}

		return eventRepo.UpdateStatus(event.ID, constants.SourceEventStatusDistributed, now)
	})
	if err != nil {
		return nil, err
	}

	// 订阅缴费视同复购，解冻买家此前被冻结的佣金
	if s.balances != nil {
		event, err := s.events.GetByID(eventID)
		if err == nil && event != nil && event.EventType == constants.SourceEventTypeSubscription {
			if _, err := s.balances.ThawOnResubscription(event.MemberID, time.Now()); err != nil {
				logger.Errorw("thaw_on_resubscription_failed", "member_id", event.MemberID, "error", err)
			}
		}
	}

	logger.Infow("commission_distributed",
		"event_id", eventID,
		"entries", result.EntriesCreated,
		"skips", result.SkipsRecorded,
		"duplicates", result.Duplicates,
		"total_paid", result.TotalPaid,
	)
	return result, nil
}

// buildEntry 根据计划行构造台账条目
func (s *CommissionService) buildEntry(event *models.SourceEvent, item PlanItem, now time.Time) *models.CommissionEntry {
	entry := &models.CommissionEntry{
		SourceEventID: event.ID,
		RecipientID:   item.RecipientID,
		Level:         item.Level,
		StructureType: event.StructureType,
		Kind:          constants.CommissionKindLevel,
		BaseAmount:    event.Amount,
		RatePercent:   item.Percent,
		Amount:        item.Amount,
		Status:        constants.CommissionStatusCompleted,
	}
	switch {
	case item.Frozen:
		entry.Status = constants.CommissionStatusFrozen
		if s.cfg.FreezeDays > 0 {
			frozenUntil := now.AddDate(0, 0, s.cfg.FreezeDays)
			entry.FrozenUntil = &frozenUntil
		}
	case s.cfg.ConfirmDays > 0:
		entry.Status = constants.CommissionStatusPending
		confirmAt := now.AddDate(0, 0, s.cfg.ConfirmDays)
		entry.ConfirmAt = &confirmAt
	}
	return entry
}

// ReverseSourceEvent 冲正事件产生的全部佣金。
// 已到账条目写入负额冲正条目；尚未到账（pending/frozen）条目直接置为 failed。
func (s *CommissionService) ReverseSourceEvent(eventID uint, note string) error {
	return s.events.Transaction(func(tx *gorm.DB) error {
		eventRepo := s.events.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		event, err := eventRepo.GetByIDForUpdate(eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return ErrNotFound
		}
		if event.Status == constants.SourceEventStatusReversed {
			return nil
		}

		entries, err := ledgerRepo.ListEntriesByEvent(event.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, entry := range entries {
			if entry.Kind == constants.CommissionKindReversal {
				continue
			}
			switch entry.Status {
			case constants.CommissionStatusPending, constants.CommissionStatusFrozen:
				if err := ledgerRepo.UpdateEntryStatus(entry.ID, constants.CommissionStatusFailed, nil); err != nil {
					return err
				}
			case constants.CommissionStatusCompleted:
				reversal := &models.CommissionEntry{
					SourceEventID: entry.SourceEventID,
					RecipientID:   entry.RecipientID,
					Level:         entry.Level,
					StructureType: entry.StructureType,
					Kind:          constants.CommissionKindReversal,
					BaseAmount:    entry.BaseAmount,
					RatePercent:   entry.RatePercent,
					Amount:        -entry.Amount,
					Status:        constants.CommissionStatusCompleted,
					Note:          note,
				}
				if err := ledgerRepo.CreateEntry(reversal); err != nil {
					if isUniqueViolation(err) {
						continue
					}
					return err
				}
			}
		}

		return eventRepo.UpdateStatus(event.ID, constants.SourceEventStatusReversed, now)
	})
}

// withTx 返回绑定到事务的服务副本
func (s *CommissionService) withTx(tx *gorm.DB) *CommissionService {
	clone := *s
	clone.events = s.events.WithTx(tx)
	clone.members = s.members.WithTx(tx)
	clone.networks = s.networks.WithTx(tx)
	clone.ledger = s.ledger.WithTx(tx)
	clone.rules = s.rules.WithTx(tx)
	clone.evaluator = NewEligibilityEvaluator(clone.events, clone.networks)
	return &clone
}

// isUniqueViolation 判断是否唯一索引冲突
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
