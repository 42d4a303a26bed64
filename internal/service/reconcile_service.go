package service

import (
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/network"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconcileService 佣金对账与补发服务
type ReconcileService struct {
	events      repository.SourceEventRepository
	ledger      repository.LedgerRepository
	networks    repository.NetworkRepository
	commissions *CommissionService
	cfg         config.CommissionConfig
}

// NewReconcileService 创建对账服务
func NewReconcileService(
	events repository.SourceEventRepository,
	ledger repository.LedgerRepository,
	networks repository.NetworkRepository,
	commissions *CommissionService,
	cfg config.CommissionConfig,
) *ReconcileService {
	return &ReconcileService{
		events:      events,
		ledger:      ledger,
		networks:    networks,
		commissions: commissions,
		cfg:         cfg,
	}
}

// AuditRow 单个（事件×层级）的对账结论
type AuditRow struct {
	SourceEventID      uint            `json:"source_event_id"`
	EventNo            string          `json:"event_no"`
	PartnerID          uint            `json:"partner_id"` // 产生事件的下级合伙人
	StructureType      string          `json:"structure_type"`
	Level              int             `json:"level"`
	SubscriptionAmount int64           `json:"subscription_amount"` // 事件金额（整数坚戈）
	ExpectedPercent    decimal.Decimal `json:"expected_percent"`
	Expected           int64           `json:"expected"`
	Actual             int64           `json:"actual"`
	Result             string          `json:"result"`
	Reason             string          `json:"reason,omitempty"` // 应发为零时的原因标签
}

// AuditReport 合伙人佣金对账报告
type AuditReport struct {
	MemberID  uint       `json:"member_id"`
	Total     int        `json:"total"`
	OK        int        `json:"ok"`
	Missing   int        `json:"missing"`
	Underpaid int        `json:"underpaid"`
	Overpaid  int        `json:"overpaid"`
	Rows      []AuditRow `json:"rows"`
}

// AuditMemberCommissions 重算合伙人应得佣金并与台账逐行比对。
// 应发按事件发生时点的规则与网络状态重放得出，实发取台账净额
// （level 条目加 reversal 冲正、剔除 failed），纯读不落库。
func (s *ReconcileService) AuditMemberCommissions(memberID uint) (*AuditReport, error) {
	report := &AuditReport{MemberID: memberID, Rows: []AuditRow{}}
	resolver := network.NewResolver(s.networks)

	for _, structure := range []string{constants.StructureSubscription, constants.StructureProduct} {
		resolved, err := resolver.Resolve(memberID, structure, constants.StructureMaxLevel(structure))
		if err != nil {
			return nil, err
		}
		if resolved.CycleDetected {
			logger.Warnw("audit_cycle_detected", "member_id", memberID, "structure", structure)
		}
		if len(resolved.Members) == 0 {
			continue
		}
		levelByMember := make(map[uint]int, len(resolved.Members))
		buyerIDs := make([]uint, 0, len(resolved.Members))
		for _, item := range resolved.Members {
			levelByMember[item.MemberID] = item.Level
			buyerIDs = append(buyerIDs, item.MemberID)
		}

		events, err := s.events.ListByMembers(buyerIDs, structure)
		if err != nil {
			return nil, err
		}
		for i := range events {
			event := &events[i]
			level := levelByMember[event.MemberID]

			var expected int64
			var expectedPercent decimal.Decimal
			var reason string
			if event.Status != constants.SourceEventStatusReversed {
				plan, err := s.commissions.PlanDistribution(event)
				if err != nil {
					return nil, err
				}
				for _, item := range plan.Items {
					if item.RecipientID != memberID || item.Level != level {
						continue
					}
					expected = item.Amount
					expectedPercent = item.Percent
					reason = item.Reason
					break
				}
			}

			actual, err := s.actualNet(event.ID, memberID, level, structure)
			if err != nil {
				return nil, err
			}
			if expected == 0 && actual == 0 {
				report.Total++
				report.OK++
				continue
			}

			row := AuditRow{
				SourceEventID:      event.ID,
				EventNo:            event.EventNo,
				PartnerID:          event.MemberID,
				StructureType:      structure,
				Level:              level,
				SubscriptionAmount: event.Amount,
				ExpectedPercent:    expectedPercent,
				Expected:           expected,
				Actual:             actual,
				Reason:             reason,
			}
			switch {
			case expected == actual:
				row.Result = constants.AuditResultOK
				report.OK++
			case actual == 0:
				row.Result = constants.AuditResultMissing
				report.Missing++
			case actual < expected:
				row.Result = constants.AuditResultUnderpaid
				report.Underpaid++
			default:
				// 含不该发而发了的情况（如市场赠送账号的消费）
				row.Result = constants.AuditResultOverpaid
				report.Overpaid++
			}
			report.Total++
			report.Rows = append(report.Rows, row)
		}
	}
	return report, nil
}

// actualNet 取台账净额：level 条目与 reversal 冲正相抵，failed 不计
func (s *ReconcileService) actualNet(eventID, recipientID uint, level int, structure string) (int64, error) {
	var net int64
	for _, kind := range []string{constants.CommissionKindLevel, constants.CommissionKindReversal} {
		entry, err := s.ledger.GetEntry(eventID, recipientID, level, structure, kind)
		if err != nil {
			return 0, err
		}
		if entry == nil || entry.Status == constants.CommissionStatusFailed {
			continue
		}
		net += entry.Amount
	}
	return net, nil
}

// BackfillInput 补发参数
type BackfillInput struct {
	MemberID uint      // 0 表示全量
	From     time.Time // 事件发生时间窗口起点
	To       time.Time // 事件发生时间窗口终点
	DryRun   bool      // 只算不写
}

// BackfillDetail 补发明细行
type BackfillDetail struct {
	SourceEventID uint   `json:"source_event_id"`
	EventNo       string `json:"event_no"`
	RecipientID   uint   `json:"recipient_id"`
	StructureType string `json:"structure_type"`
	Level         int    `json:"level"`
	Expected      int64  `json:"expected"`
	Actual        int64  `json:"actual"`
	Result        string `json:"result"`
}

// BackfillResult 补发结果
type BackfillResult struct {
	DryRun         bool             `json:"dry_run"`
	EventsScanned  int              `json:"events_scanned"`
	MissingEntries int              `json:"missing_entries"`
	CreatedEntries int              `json:"created_entries"`
	Underpaid      int              `json:"underpaid"`
	Overpaid       int              `json:"overpaid"`
	AmountCreated  int64            `json:"amount_created"`
	Details        []BackfillDetail `json:"details"`
}

// Backfill 补发历史漏发佣金。
// 分批重放时间窗口内的事件，只创建缺失条目（幂等插入），已存在的
// 台账一律不改不删；少发/多发只上报，纠正必须另行显式冲正。
// dry-run 与实发产出完全相同的差异清单，区别只在是否落库。
func (s *ReconcileService) Backfill(input BackfillInput) (*BackfillResult, error) {
	if input.To.Before(input.From) {
		return nil, ErrValidation
	}
	if s.cfg.BackfillMaxWindowDays > 0 {
		maxWindow := time.Duration(s.cfg.BackfillMaxWindowDays) * 24 * time.Hour
		if input.To.Sub(input.From) > maxWindow {
			return nil, ErrBackfillWindowTooWide
		}
	}

	result := &BackfillResult{DryRun: input.DryRun, Details: []BackfillDetail{}}
	batchSize := s.cfg.BackfillBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var afterID uint
	for {
		events, err := s.events.ListForReplay(afterID, input.From, input.To, input.MemberID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		for i := range events {
			event := &events[i]
			afterID = event.ID
			result.EventsScanned++
			if err := s.backfillEvent(event, input.DryRun, result); err != nil {
				return nil, err
			}
		}
		if len(events) < batchSize {
			break
		}
	}

	logger.Infow("commission_backfill_finished",
		"dry_run", input.DryRun,
		"member_id", input.MemberID,
		"events_scanned", result.EventsScanned,
		"missing", result.MissingEntries,
		"created", result.CreatedEntries,
		"amount_created", result.AmountCreated,
	)
	return result, nil
}

// backfillEvent 重放单个事件并补齐缺失台账
func (s *ReconcileService) backfillEvent(event *models.SourceEvent, dryRun bool, result *BackfillResult) error {
	plan, err := s.commissions.PlanDistribution(event)
	if err != nil {
		return err
	}
	now := time.Now()

	apply := func(ledgerRepo repository.LedgerRepository) error {
		for _, item := range plan.Items {
			if item.Reason != "" {
				if dryRun {
					continue
				}
				skip := &models.CommissionSkip{
					SourceEventID: event.ID,
					RecipientID:   item.RecipientID,
					Level:         item.Level,
					StructureType: event.StructureType,
					Reason:        item.Reason,
				}
				if err := ledgerRepo.CreateSkip(skip); err != nil && !isUniqueViolation(err) {
					return err
				}
				continue
			}

			existing, err := ledgerRepo.GetEntry(event.ID, item.RecipientID, item.Level, event.StructureType, constants.CommissionKindLevel)
			if err != nil {
				return err
			}
			if existing == nil {
				result.MissingEntries++
				result.Details = append(result.Details, BackfillDetail{
					SourceEventID: event.ID,
					EventNo:       event.EventNo,
					RecipientID:   item.RecipientID,
					StructureType: event.StructureType,
					Level:         item.Level,
					Expected:      item.Amount,
					Result:        constants.AuditResultMissing,
				})
				if dryRun {
					continue
				}
				entry := s.commissions.buildEntry(event, item, now)
				entry.Note = "backfill"
				if err := ledgerRepo.CreateEntry(entry); err != nil {
					if isUniqueViolation(err) {
						continue
					}
					return err
				}
				result.CreatedEntries++
				result.AmountCreated += entry.Amount
				continue
			}
			if existing.Status == constants.CommissionStatusFailed {
				continue
			}
			if existing.Amount < item.Amount {
				result.Underpaid++
				result.Details = append(result.Details, BackfillDetail{
					SourceEventID: event.ID,
					EventNo:       event.EventNo,
					RecipientID:   item.RecipientID,
					StructureType: event.StructureType,
					Level:         item.Level,
					Expected:      item.Amount,
					Actual:        existing.Amount,
					Result:        constants.AuditResultUnderpaid,
				})
			} else if existing.Amount > item.Amount {
				result.Overpaid++
				result.Details = append(result.Details, BackfillDetail{
					SourceEventID: event.ID,
					EventNo:       event.EventNo,
					RecipientID:   item.RecipientID,
					StructureType: event.StructureType,
					Level:         item.Level,
					Expected:      item.Amount,
					Actual:        existing.Amount,
					Result:        constants.AuditResultOverpaid,
				})
			}
		}
		return nil
	}

	if dryRun {
		return apply(s.ledger)
	}
	return s.ledger.Transaction(func(tx *gorm.DB) error {
		return apply(s.ledger.WithTx(tx))
	})
}
