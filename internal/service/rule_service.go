package service

import (
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/models"
	"github.com/qaznet/partner-core/internal/repository"

	"github.com/shopspring/decimal"
)

// RuleService 佣金规则管理服务。
// 规则表只追加版本，历史事件的重放永远命中当时生效的版本。
type RuleService struct {
	rules repository.RuleRepository
}

// NewRuleService 创建规则服务
func NewRuleService(rules repository.RuleRepository) *RuleService {
	return &RuleService{rules: rules}
}

// RuleVersionInput 新规则版本参数
type RuleVersionInput struct {
	StructureType string
	Level         int
	Percent       decimal.Decimal
	EffectiveFrom time.Time
	AdminID       uint
	Note          string
}

// CreateVersion 发布新规则版本
func (s *RuleService) CreateVersion(input RuleVersionInput) (*models.CommissionRule, error) {
	if !constants.IsValidStructure(input.StructureType) {
		return nil, ErrInvalidStructure
	}
	if input.Level < 1 || input.Level > constants.StructureMaxLevel(input.StructureType) {
		return nil, ErrRuleLevelRange
	}
	if input.Percent.LessThanOrEqual(decimal.Zero) || input.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrRulePercentRange
	}
	if input.EffectiveFrom.IsZero() {
		input.EffectiveFrom = time.Now()
	}

	rule := &models.CommissionRule{
		StructureType: input.StructureType,
		Level:         input.Level,
		Percent:       input.Percent,
		EffectiveFrom: input.EffectiveFrom,
		CreatedBy:     input.AdminID,
		Note:          input.Note,
	}
	if err := s.rules.Create(rule); err != nil {
		return nil, err
	}
	logger.Infow("commission_rule_published",
		"structure", input.StructureType,
		"level", input.Level,
		"percent", input.Percent.String(),
		"effective_from", input.EffectiveFrom,
		"admin_id", input.AdminID,
	)
	return rule, nil
}

// ActiveRuleSet 指定时点生效的规则集
func (s *RuleService) ActiveRuleSet(structure string, at time.Time) (map[int]decimal.Decimal, error) {
	if !constants.IsValidStructure(structure) {
		return nil, ErrInvalidStructure
	}
	return s.rules.ActiveRuleSetAt(structure, at)
}

// ListHistory 分页查询规则历史
func (s *RuleService) ListHistory(filter repository.RuleListFilter) ([]models.CommissionRule, int64, error) {
	return s.rules.List(filter)
}

// SeedDefaultRules 写入默认规则（仅空表时，种子用）
func (s *RuleService) SeedDefaultRules(effectiveFrom time.Time) error {
	existing, total, err := s.rules.List(repository.RuleListFilter{PageSize: 1})
	if err != nil {
		return err
	}
	if total > 0 || len(existing) > 0 {
		return nil
	}

	subscription := map[int]string{1: "10", 2: "5", 3: "3", 4: "2", 5: "1"}
	product := map[int]string{1: "5", 2: "3", 3: "2", 4: "1", 5: "1", 6: "0.5", 7: "0.5", 8: "0.5", 9: "0.25", 10: "0.25"}

	var rules []models.CommissionRule
	for level, percent := range subscription {
		rules = append(rules, models.CommissionRule{
			StructureType: constants.StructureSubscription,
			Level:         level,
			Percent:       decimal.RequireFromString(percent),
			EffectiveFrom: effectiveFrom,
			Note:          "seed",
		})
	}
	for level, percent := range product {
		rules = append(rules, models.CommissionRule{
			StructureType: constants.StructureProduct,
			Level:         level,
			Percent:       decimal.RequireFromString(percent),
			EffectiveFrom: effectiveFrom,
			Note:          "seed",
		})
	}
	return s.rules.CreateBatch(rules)
}
