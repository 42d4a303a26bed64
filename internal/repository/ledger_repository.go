package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionEntryListFilter 佣金台账列表查询条件
type CommissionEntryListFilter struct {
	RecipientID   uint
	SourceEventID uint
	StructureType string
	Status        string
	Kind          string
	Level         int
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Page          int
	PageSize      int
}

// LevelAggregate 层级聚合结果
type LevelAggregate struct {
	Level        int
	EarnedTotal  int64
	FrozenTotal  int64
	VolumeTotal  int64
	EntriesCount int64
}

// LedgerRepository 佣金台账数据访问接口（台账条目、跳过记录、人工调整）
type LedgerRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) LedgerRepository

	CreateEntry(entry *models.CommissionEntry) error
	GetEntry(sourceEventID, recipientID uint, level int, structure, kind string) (*models.CommissionEntry, error)
	ListEntriesByEvent(sourceEventID uint) ([]models.CommissionEntry, error)
	ListEntries(filter CommissionEntryListFilter) ([]models.CommissionEntry, int64, error)
	UpdateEntryStatus(id uint, status string, thawedAt *time.Time) error
	ListFrozenDue(now time.Time, limit int) ([]models.CommissionEntry, error)
	MarkPendingCompleted(now time.Time) (int64, error)
	ListFrozenByRecipient(recipientID uint) ([]models.CommissionEntry, error)
	SumEntriesByStatus(recipientID uint, statuses []string) (int64, error)
	AggregateByLevel(recipientID uint, structure string, from, to *time.Time) ([]LevelAggregate, error)

	CreateSkip(skip *models.CommissionSkip) error
	ListSkipsByEvent(sourceEventID uint) ([]models.CommissionSkip, error)
	ListSkipsByRecipient(recipientID uint, structure string) ([]models.CommissionSkip, error)

	CreateAdjustment(adjustment *models.BalanceAdjustment) error
	SumAdjustments(memberID uint) (int64, error)
	ListAdjustments(memberID uint, page, pageSize int) ([]models.BalanceAdjustment, int64, error)
}

// GormLedgerRepository GORM 佣金台账仓储
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建佣金台账仓储
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// Transaction 执行事务
func (r *GormLedgerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateEntry 插入台账条目（唯一索引冲突由调用方按幂等处理）
func (r *GormLedgerRepository) CreateEntry(entry *models.CommissionEntry) error {
	return r.db.Create(entry).Error
}

// GetEntry 按幂等键获取台账条目
func (r *GormLedgerRepository) GetEntry(sourceEventID, recipientID uint, level int, structure, kind string) (*models.CommissionEntry, error) {
	var entry models.CommissionEntry
	err := r.db.
		Where("source_event_id = ? AND recipient_id = ? AND level = ? AND structure_type = ? AND kind = ?",
			sourceEventID, recipientID, level, structure, kind).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntriesByEvent 查询事件产生的全部台账条目
func (r *GormLedgerRepository) ListEntriesByEvent(sourceEventID uint) ([]models.CommissionEntry, error) {
	if sourceEventID == 0 {
		return nil, nil
	}
	var entries []models.CommissionEntry
	err := r.db.
		Where("source_event_id = ?", sourceEventID).
		Order("level asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListEntries 分页查询台账条目
func (r *GormLedgerRepository) ListEntries(filter CommissionEntryListFilter) ([]models.CommissionEntry, int64, error) {
	query := r.db.Model(&models.CommissionEntry{}).Preload("SourceEvent")
	if filter.RecipientID != 0 {
		query = query.Where("recipient_id = ?", filter.RecipientID)
	}
	if filter.SourceEventID != 0 {
		query = query.Where("source_event_id = ?", filter.SourceEventID)
	}
	if structure := strings.TrimSpace(filter.StructureType); structure != "" {
		query = query.Where("structure_type = ?", structure)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if filter.Level > 0 {
		query = query.Where("level = ?", filter.Level)
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

	var rows []models.CommissionEntry
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateEntryStatus 更新台账条目状态
func (r *GormLedgerRepository) UpdateEntryStatus(id uint, status string, thawedAt *time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if thawedAt != nil {
		updates["thawed_at"] = *thawedAt
	}
	return r.db.Model(&models.CommissionEntry{}).Where("id = ?", id).Updates(updates).Error
}

// ListFrozenDue 查询冻结到期的台账条目并加行锁
func (r *GormLedgerRepository) ListFrozenDue(now time.Time, limit int) ([]models.CommissionEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	var entries []models.CommissionEntry
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND frozen_until IS NOT NULL AND frozen_until <= ?", constants.CommissionStatusFrozen, now).
		Order("frozen_until asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkPendingCompleted 待确认期满的条目批量转为已到账
func (r *GormLedgerRepository) MarkPendingCompleted(now time.Time) (int64, error) {
	result := r.db.Model(&models.CommissionEntry{}).
		Where("status = ? AND confirm_at IS NOT NULL AND confirm_at <= ?", constants.CommissionStatusPending, now).
		Updates(map[string]interface{}{
			"status":     constants.CommissionStatusCompleted,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListFrozenByRecipient 查询合伙人的全部冻结条目并加行锁
func (r *GormLedgerRepository) ListFrozenByRecipient(recipientID uint) ([]models.CommissionEntry, error) {
	if recipientID == 0 {
		return nil, nil
	}
	var entries []models.CommissionEntry
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("recipient_id = ? AND status = ?", recipientID, constants.CommissionStatusFrozen).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SumEntriesByStatus 按状态汇总合伙人台账金额
func (r *GormLedgerRepository) SumEntriesByStatus(recipientID uint, statuses []string) (int64, error) {
	if recipientID == 0 || len(statuses) == 0 {
		return 0, nil
	}
	var total *int64
	err := r.db.Model(&models.CommissionEntry{}).
		Select("SUM(amount)").
		Where("recipient_id = ? AND status IN ?", recipientID, statuses).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// AggregateByLevel 按层级聚合合伙人的佣金数据
func (r *GormLedgerRepository) AggregateByLevel(recipientID uint, structure string, from, to *time.Time) ([]LevelAggregate, error) {
	if recipientID == 0 {
		return nil, nil
	}
	query := r.db.Model(&models.CommissionEntry{}).
		Select(
			"level",
			"SUM(CASE WHEN status IN ('pending','processing','completed') THEN amount ELSE 0 END) AS earned_total",
			"SUM(CASE WHEN status = 'frozen' THEN amount ELSE 0 END) AS frozen_total",
			"SUM(base_amount) AS volume_total",
			"COUNT(*) AS entries_count",
		).
		Where("recipient_id = ? AND structure_type = ?", recipientID, structure)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	var rows []LevelAggregate
	if err := query.Group("level").Order("level asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateSkip 插入未发佣金原因记录（唯一索引冲突由调用方按幂等处理）
func (r *GormLedgerRepository) CreateSkip(skip *models.CommissionSkip) error {
	return r.db.Create(skip).Error
}

// ListSkipsByEvent 查询事件的全部跳过记录
func (r *GormLedgerRepository) ListSkipsByEvent(sourceEventID uint) ([]models.CommissionSkip, error) {
	if sourceEventID == 0 {
		return nil, nil
	}
	var skips []models.CommissionSkip
	err := r.db.
		Where("source_event_id = ?", sourceEventID).
		Order("level asc, id asc").
		Find(&skips).Error
	if err != nil {
		return nil, err
	}
	return skips, nil
}

// ListSkipsByRecipient 查询合伙人在指定结构下的跳过记录
func (r *GormLedgerRepository) ListSkipsByRecipient(recipientID uint, structure string) ([]models.CommissionSkip, error) {
	if recipientID == 0 {
		return nil, nil
	}
	query := r.db.Where("recipient_id = ?", recipientID)
	if structure != "" {
		query = query.Where("structure_type = ?", structure)
	}
	var skips []models.CommissionSkip
	if err := query.Order("id desc").Find(&skips).Error; err != nil {
		return nil, err
	}
	return skips, nil
}

// CreateAdjustment 插入人工余额调整记录
func (r *GormLedgerRepository) CreateAdjustment(adjustment *models.BalanceAdjustment) error {
	return r.db.Create(adjustment).Error
}

// SumAdjustments 汇总合伙人的人工调整净额（credit 为正、debit 为负）
func (r *GormLedgerRepository) SumAdjustments(memberID uint) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var total *int64
	err := r.db.Model(&models.BalanceAdjustment{}).
		Select("SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END)").
		Where("member_id = ?", memberID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// ListAdjustments 分页查询人工调整记录
func (r *GormLedgerRepository) ListAdjustments(memberID uint, page, pageSize int) ([]models.BalanceAdjustment, int64, error) {
	query := r.db.Model(&models.BalanceAdjustment{})
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, page, pageSize)
	var rows []models.BalanceAdjustment
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
