package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawListFilter 提现申请列表查询条件
type WithdrawListFilter struct {
	MemberID    uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// WithdrawRepository 提现申请数据访问接口
type WithdrawRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) WithdrawRepository

	Create(request *models.WithdrawRequest) error
	GetByID(id uint) (*models.WithdrawRequest, error)
	GetByIDForUpdate(id uint) (*models.WithdrawRequest, error)
	Update(request *models.WithdrawRequest) error
	List(filter WithdrawListFilter) ([]models.WithdrawRequest, int64, error)
	SumByStatuses(memberID uint, statuses []string) (int64, error)
}

// GormWithdrawRepository GORM 提现申请仓储
type GormWithdrawRepository struct {
	db *gorm.DB
}

// NewWithdrawRepository 创建提现申请仓储
func NewWithdrawRepository(db *gorm.DB) *GormWithdrawRepository {
	return &GormWithdrawRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWithdrawRepository) WithTx(tx *gorm.DB) WithdrawRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawRepository{db: tx}
}

// Transaction 执行事务
func (r *GormWithdrawRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建提现申请
func (r *GormWithdrawRepository) Create(request *models.WithdrawRequest) error {
	return r.db.Create(request).Error
}

// GetByID 按ID获取提现申请
func (r *GormWithdrawRepository) GetByID(id uint) (*models.WithdrawRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.WithdrawRequest
	if err := r.db.Preload("Member").First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// GetByIDForUpdate 按ID获取提现申请并加行锁
func (r *GormWithdrawRepository) GetByIDForUpdate(id uint) (*models.WithdrawRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var request models.WithdrawRequest
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// Update 保存提现申请
func (r *GormWithdrawRepository) Update(request *models.WithdrawRequest) error {
	if request == nil || request.ID == 0 {
		return nil
	}
	return r.db.Save(request).Error
}

// List 分页查询提现申请
func (r *GormWithdrawRepository) List(filter WithdrawListFilter) ([]models.WithdrawRequest, int64, error) {
	query := r.db.Model(&models.WithdrawRequest{}).Preload("Member")
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.WithdrawRequest
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumByStatuses 按状态汇总合伙人提现金额
func (r *GormWithdrawRepository) SumByStatuses(memberID uint, statuses []string) (int64, error) {
	if memberID == 0 || len(statuses) == 0 {
		return 0, nil
	}
	var total *int64
	err := r.db.Model(&models.WithdrawRequest{}).
		Select("SUM(amount)").
		Where("member_id = ? AND status IN ?", memberID, statuses).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
