package service

import (
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"

	"gorm.io/gorm"
)

// BalanceService 余额聚合服务。
// 余额没有缓存计数器，每次都从台账、提现与人工调整折算得出。
type BalanceService struct {
	members   repository.MemberRepository
	ledger    repository.LedgerRepository
	withdraws repository.WithdrawRepository
	events    repository.SourceEventRepository
}

// NewBalanceService 创建余额服务
func NewBalanceService(
	members repository.MemberRepository,
	ledger repository.LedgerRepository,
	withdraws repository.WithdrawRepository,
	events repository.SourceEventRepository,
) *BalanceService {
	return &BalanceService{
		members:   members,
		ledger:    ledger,
		withdraws: withdraws,
		events:    events,
	}
}

// Balance 合伙人余额快照（整数坚戈）
type Balance struct {
	MemberID  uint  `json:"member_id"`
	Pending   int64 `json:"pending"`   // 待确认佣金
	Frozen    int64 `json:"frozen"`    // 冻结佣金
	Available int64 `json:"available"` // 可提现余额
	Withdrawn int64 `json:"withdrawn"` // 已提现累计
}

// GetBalance 折算合伙人余额。
// 可提现 = 已到账台账净额 − 在途/已付提现 + 人工调整净额。
func (s *BalanceService) GetBalance(memberID uint) (*Balance, error) {
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}

	pending, err := s.ledger.SumEntriesByStatus(memberID, []string{
		constants.CommissionStatusPending,
		constants.CommissionStatusProcessing,
	})
	if err != nil {
		return nil, err
	}
	frozen, err := s.ledger.SumEntriesByStatus(memberID, []string{constants.CommissionStatusFrozen})
	if err != nil {
		return nil, err
	}
	completed, err := s.ledger.SumEntriesByStatus(memberID, []string{constants.CommissionStatusCompleted})
	if err != nil {
		return nil, err
	}
	reserved, err := s.withdraws.SumByStatuses(memberID, []string{
		constants.WithdrawStatusPendingReview,
		constants.WithdrawStatusPaid,
	})
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.withdraws.SumByStatuses(memberID, []string{constants.WithdrawStatusPaid})
	if err != nil {
		return nil, err
	}
	adjustments, err := s.ledger.SumAdjustments(memberID)
	if err != nil {
		return nil, err
	}

	return &Balance{
		MemberID:  memberID,
		Pending:   pending,
		Frozen:    frozen,
		Available: completed - reserved + adjustments,
		Withdrawn: withdrawn,
	}, nil
}

// ThawDueCommissions 解冻到期的冻结佣金（worker 周期调用）
func (s *BalanceService) ThawDueCommissions(now time.Time) (int, error) {
	var thawed int
	err := s.ledger.Transaction(func(tx *gorm.DB) error {
		ledgerRepo := s.ledger.WithTx(tx)
		entries, err := ledgerRepo.ListFrozenDue(now, 0)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := ledgerRepo.UpdateEntryStatus(entry.ID, constants.CommissionStatusCompleted, &now); err != nil {
				return err
			}
			thawed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if thawed > 0 {
		logger.Infow("frozen_commissions_thawed", "count", thawed)
	}
	return thawed, nil
}

// ConfirmDueCommissions 待确认期满的佣金转为已到账（worker 周期调用）
func (s *BalanceService) ConfirmDueCommissions(now time.Time) (int64, error) {
	confirmed, err := s.ledger.MarkPendingCompleted(now)
	if err != nil {
		return 0, err
	}
	if confirmed > 0 {
		logger.Infow("pending_commissions_confirmed", "count", confirmed)
	}
	return confirmed, nil
}

// ThawOnResubscription 合伙人复购订阅后解冻其全部冻结佣金
func (s *BalanceService) ThawOnResubscription(memberID uint, now time.Time) (int, error) {
	covered, err := s.events.HasSubscriptionCoverageAt(memberID, now)
	if err != nil {
		return 0, err
	}
	if !covered {
		return 0, nil
	}
	var thawed int
	err = s.ledger.Transaction(func(tx *gorm.DB) error {
		ledgerRepo := s.ledger.WithTx(tx)
		entries, err := ledgerRepo.ListFrozenByRecipient(memberID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := ledgerRepo.UpdateEntryStatus(entry.ID, constants.CommissionStatusCompleted, &now); err != nil {
				return err
			}
			thawed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if thawed > 0 {
		logger.Infow("frozen_commissions_thawed_on_resubscription", "member_id", memberID, "count", thawed)
	}
	return thawed, nil
}

// AdjustBalanceInput 人工余额调整参数
type AdjustBalanceInput struct {
	MemberID  uint
	Direction string // credit / debit
	Amount    int64
	Reason    string
	AdminID   uint
}

// AdjustBalance 管理员人工调整余额（只追加调整流水）
func (s *BalanceService) AdjustBalance(input AdjustBalanceInput) (*models.BalanceAdjustment, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if input.Direction != constants.AdjustmentDirectionCredit && input.Direction != constants.AdjustmentDirectionDebit {
		return nil, ErrValidation
	}
	if input.Reason == "" {
		return nil, ErrValidation
	}
	member, err := s.members.GetByID(input.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}

	adjustment := &models.BalanceAdjustment{
		MemberID:  input.MemberID,
		Direction: input.Direction,
		Amount:    input.Amount,
		Reason:    input.Reason,
		CreatedBy: input.AdminID,
	}
	if err := s.ledger.CreateAdjustment(adjustment); err != nil {
		return nil, err
	}
	logger.Infow("balance_adjusted",
		"member_id", input.MemberID,
		"direction", input.Direction,
		"amount", input.Amount,
		"admin_id", input.AdminID,
	)
	return adjustment, nil
}

// ListAdjustments 分页查询人工调整记录
func (s *BalanceService) ListAdjustments(memberID uint, page, pageSize int) ([]models.BalanceAdjustment, int64, error) {
	return s.ledger.ListAdjustments(memberID, page, pageSize)
}

// withTx 返回绑定到事务的服务副本
func (s *BalanceService) withTx(tx *gorm.DB) *BalanceService {
	clone := *s
	clone.members = s.members.WithTx(tx)
	clone.ledger = s.ledger.WithTx(tx)
	clone.withdraws = s.withdraws.WithTx(tx)
	clone.events = s.events.WithTx(tx)
	return &clone
}
