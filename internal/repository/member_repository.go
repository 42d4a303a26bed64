package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberListFilter 合伙人列表查询条件
type MemberListFilter struct {
	Keyword            string
	Status             string
	SubscriptionStatus string
	MarketingExempt    *bool
	Page               int
	PageSize           int
}

// MemberRepository 合伙人数据访问接口
type MemberRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MemberRepository

	Create(member *models.Member) error
	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	GetByPhone(phone string) (*models.Member, error)
	GetByReferralCode(code string) (*models.Member, error)
	GetBatch(ids []uint) (map[uint]models.Member, error)
	Update(member *models.Member) error
	UpdateFields(id uint, updates map[string]interface{}) error
	List(filter MemberListFilter) ([]models.Member, int64, error)
}

// GormMemberRepository GORM 合伙人仓储
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建合伙人仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMemberRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建合伙人
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// GetByID 按ID获取合伙人
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID获取合伙人并加行锁
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByPhone 按手机号获取合伙人
func (r *GormMemberRepository) GetByPhone(phone string) (*models.Member, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("phone = ?", phone).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByReferralCode 按推荐码获取合伙人
func (r *GormMemberRepository) GetByReferralCode(code string) (*models.Member, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("referral_code = ?", code).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetBatch 批量获取合伙人
func (r *GormMemberRepository) GetBatch(ids []uint) (map[uint]models.Member, error) {
	result := make(map[uint]models.Member, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// Update 保存合伙人
func (r *GormMemberRepository) Update(member *models.Member) error {
	if member == nil || member.ID == 0 {
		return nil
	}
	return r.db.Save(member).Error
}

// UpdateFields 更新合伙人指定字段
func (r *GormMemberRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.Member{}).Where("id = ?", id).Updates(updates).Error
}

// List 分页查询合伙人
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(phone LIKE ? OR name LIKE ? OR referral_code LIKE ?)", like, like, like)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if subscription := strings.TrimSpace(filter.SubscriptionStatus); subscription != "" {
		query = query.Where("subscription_status = ?", subscription)
	}
	if filter.MarketingExempt != nil {
		query = query.Where("marketing_exempt = ?", *filter.MarketingExempt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Member
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
