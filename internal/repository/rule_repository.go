package repository

import (
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RuleListFilter 佣金规则列表查询条件
type RuleListFilter struct {
	StructureType string
	Level         int
	Page          int
	PageSize      int
}

// RuleRepository 佣金规则数据访问接口
type RuleRepository interface {
	WithTx(tx *gorm.DB) RuleRepository

	Create(rule *models.CommissionRule) error
	CreateBatch(rules []models.CommissionRule) error
	// ActiveRuleSetAt 返回指定时点生效的规则集：level -> percent
	ActiveRuleSetAt(structure string, at time.Time) (map[int]decimal.Decimal, error)
	List(filter RuleListFilter) ([]models.CommissionRule, int64, error)
}

// GormRuleRepository GORM 佣金规则仓储
type GormRuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建佣金规则仓储
func NewRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRuleRepository) WithTx(tx *gorm.DB) RuleRepository {
	if tx == nil {
		return r
	}
	return &GormRuleRepository{db: tx}
}

// Create 新增规则版本
func (r *GormRuleRepository) Create(rule *models.CommissionRule) error {
	return r.db.Create(rule).Error
}

// CreateBatch 批量新增规则版本
func (r *GormRuleRepository) CreateBatch(rules []models.CommissionRule) error {
	if len(rules) == 0 {
		return nil
	}
	return r.db.Create(&rules).Error
}

// ActiveRuleSetAt 返回指定时点生效的规则集（每层级取 effective_from 最新的一条）
func (r *GormRuleRepository) ActiveRuleSetAt(structure string, at time.Time) (map[int]decimal.Decimal, error) {
	var rows []models.CommissionRule
	err := r.db.
		Where("structure_type = ? AND effective_from <= ?", structure, at).
		Order("level asc, effective_from asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	// 按升序扫描，后写入的版本覆盖旧版本
	result := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		result[row.Level] = row.Percent
	}
	return result, nil
}

// List 分页查询规则历史
func (r *GormRuleRepository) List(filter RuleListFilter) ([]models.CommissionRule, int64, error) {
	query := r.db.Model(&models.CommissionRule{})
	if structure := strings.TrimSpace(filter.StructureType); structure != "" {
		query = query.Where("structure_type = ?", structure)
	}
	if filter.Level > 0 {
		query = query.Where("level = ?", filter.Level)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionRule
	if err := query.Order("effective_from desc, level asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
