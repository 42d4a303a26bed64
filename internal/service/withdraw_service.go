package service

import (
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/config"
	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithdrawService 提现服务
type WithdrawService struct {
	withdraws repository.WithdrawRepository
	members   repository.MemberRepository
	balances  *BalanceService
	cfg       config.WithdrawConfig
}

// NewWithdrawService 创建提现服务
func NewWithdrawService(
	withdraws repository.WithdrawRepository,
	members repository.MemberRepository,
	balances *BalanceService,
	cfg config.WithdrawConfig,
) *WithdrawService {
	return &WithdrawService{
		withdraws: withdraws,
		members:   members,
		balances:  balances,
		cfg:       cfg,
	}
}

// WithdrawApplyInput 提现申请参数
type WithdrawApplyInput struct {
	MemberID uint
	Amount   int64
	Channel  string
	Account  string
}

// Apply 提交提现申请。
// 余额校验与申请落库在同一事务内，申请合伙人行加锁防止并发超提。
func (s *WithdrawService) Apply(input WithdrawApplyInput) (*models.WithdrawRequest, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if input.Amount < s.cfg.MinAmount {
		return nil, ErrWithdrawBelowMin
	}
	if !s.channelAllowed(input.Channel) {
		return nil, ErrWithdrawChannel
	}
	if strings.TrimSpace(input.Account) == "" {
		return nil, ErrValidation
	}

	request := &models.WithdrawRequest{
		RequestNo: "WD-" + uuid.NewString(),
		MemberID:  input.MemberID,
		Amount:    input.Amount,
		Channel:   input.Channel,
		Account:   strings.TrimSpace(input.Account),
		Status:    constants.WithdrawStatusPendingReview,
	}
	err := s.withdraws.Transaction(func(tx *gorm.DB) error {
		member, err := s.members.WithTx(tx).GetByIDForUpdate(input.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrNotFound
		}
		if member.Status != constants.MemberStatusActive {
			return ErrMemberDisabled
		}

		balance, err := s.balances.withTx(tx).GetBalance(input.MemberID)
		if err != nil {
			return err
		}
		if balance.Available < input.Amount {
			return ErrInsufficientBalance
		}
		return s.withdraws.WithTx(tx).Create(request)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("withdraw_applied",
		"member_id", input.MemberID,
		"request_no", request.RequestNo,
		"amount", input.Amount,
		"channel", input.Channel,
	)
	return request, nil
}

// Review 管理员审核提现申请（reject 释放预占，pay 标记打款）
func (s *WithdrawService) Review(requestID uint, action, remark string, adminID uint) (*models.WithdrawRequest, error) {
	var request *models.WithdrawRequest
	err := s.withdraws.Transaction(func(tx *gorm.DB) error {
		withdrawRepo := s.withdraws.WithTx(tx)
		row, err := withdrawRepo.GetByIDForUpdate(requestID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if row.Status != constants.WithdrawStatusPendingReview {
			return ErrWithdrawNotReviewable
		}

		now := time.Now()
		switch action {
		case constants.WithdrawActionReject:
			row.Status = constants.WithdrawStatusRejected
		case constants.WithdrawActionPay:
			row.Status = constants.WithdrawStatusPaid
		default:
			return ErrValidation
		}
		row.ReviewedBy = &adminID
		row.ReviewedAt = &now
		row.ReviewRemark = strings.TrimSpace(remark)
		request = row
		return withdrawRepo.Update(row)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("withdraw_reviewed",
		"request_id", requestID,
		"status", request.Status,
		"admin_id", adminID,
	)
	return request, nil
}

// List 分页查询提现申请
func (s *WithdrawService) List(filter repository.WithdrawListFilter) ([]models.WithdrawRequest, int64, error) {
	return s.withdraws.List(filter)
}

func (s *WithdrawService) channelAllowed(channel string) bool {
	for _, allowed := range s.cfg.Channels {
		if allowed == channel {
			return true
		}
	}
	return false
}
