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

// SourceEventListFilter 来源事件列表查询条件
type SourceEventListFilter struct {
	MemberID      uint
	EventType     string
	StructureType string
	Status        string
	OccurredFrom  *time.Time
	OccurredTo    *time.Time
	Page          int
	PageSize      int
}

// SourceEventRepository 来源事件数据访问接口
type SourceEventRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) SourceEventRepository

	Create(event *models.SourceEvent) error
	GetByID(id uint) (*models.SourceEvent, error)
	GetByIDForUpdate(id uint) (*models.SourceEvent, error)
	GetByEventNo(eventNo string) (*models.SourceEvent, error)
	GetBatch(ids []uint) (map[uint]models.SourceEvent, error)
	UpdateStatus(id uint, status string, at time.Time) error
	List(filter SourceEventListFilter) ([]models.SourceEvent, int64, error)
	// ListByMembers 查询一批合伙人产生的全部事件（对账用）
	ListByMembers(memberIDs []uint, structure string) ([]models.SourceEvent, error)
	// ListForReplay 按ID游标分批拉取待重放事件（补发/对账用）
	ListForReplay(afterID uint, occurredFrom, occurredTo time.Time, memberID uint, limit int) ([]models.SourceEvent, error)
	// HasSubscriptionCoverageAt 判断指定时点是否有订阅事件覆盖
	HasSubscriptionCoverageAt(memberID uint, at time.Time) (bool, error)
	// HasSubscriptionBefore 判断指定时点之前是否缴纳过订阅
	HasSubscriptionBefore(memberID uint, at time.Time) (bool, error)
	// LatestSubscriptionCoverageEnd 返回最近一次订阅覆盖的截止时间
	LatestSubscriptionCoverageEnd(memberID uint) (*time.Time, error)
}

// GormSourceEventRepository GORM 来源事件仓储
type GormSourceEventRepository struct {
	db *gorm.DB
}

// NewSourceEventRepository 创建来源事件仓储
func NewSourceEventRepository(db *gorm.DB) *GormSourceEventRepository {
	return &GormSourceEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSourceEventRepository) WithTx(tx *gorm.DB) SourceEventRepository {
	if tx == nil {
		return r
	}
	return &GormSourceEventRepository{db: tx}
}

// Transaction 执行事务
func (r *GormSourceEventRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建来源事件
func (r *GormSourceEventRepository) Create(event *models.SourceEvent) error {
	return r.db.Create(event).Error
}

// GetByID 按ID获取来源事件
func (r *GormSourceEventRepository) GetByID(id uint) (*models.SourceEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var event models.SourceEvent
	if err := r.db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByIDForUpdate 按ID获取来源事件并加行锁
func (r *GormSourceEventRepository) GetByIDForUpdate(id uint) (*models.SourceEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var event models.SourceEvent
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByEventNo 按事件编号获取来源事件
func (r *GormSourceEventRepository) GetByEventNo(eventNo string) (*models.SourceEvent, error) {
	eventNo = strings.TrimSpace(eventNo)
	if eventNo == "" {
		return nil, nil
	}
	var event models.SourceEvent
	if err := r.db.Where("event_no = ?", eventNo).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetBatch 批量获取来源事件
func (r *GormSourceEventRepository) GetBatch(ids []uint) (map[uint]models.SourceEvent, error) {
	result := make(map[uint]models.SourceEvent, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.SourceEvent
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// UpdateStatus 更新事件状态并打时间戳
func (r *GormSourceEventRepository) UpdateStatus(id uint, status string, at time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case constants.SourceEventStatusDistributed:
		updates["distributed_at"] = at
	case constants.SourceEventStatusReversed:
		updates["reversed_at"] = at
	}
	return r.db.Model(&models.SourceEvent{}).Where("id = ?", id).Updates(updates).Error
}

// List 分页查询来源事件
func (r *GormSourceEventRepository) List(filter SourceEventListFilter) ([]models.SourceEvent, int64, error) {
	query := r.db.Model(&models.SourceEvent{}).Preload("Member")
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if structure := strings.TrimSpace(filter.StructureType); structure != "" {
		query = query.Where("structure_type = ?", structure)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.OccurredFrom != nil {
		query = query.Where("occurred_at >= ?", *filter.OccurredFrom)
	}
	if filter.OccurredTo != nil {
		query = query.Where("occurred_at <= ?", *filter.OccurredTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.SourceEvent
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByMembers 查询一批合伙人产生的全部事件
func (r *GormSourceEventRepository) ListByMembers(memberIDs []uint, structure string) ([]models.SourceEvent, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	query := r.db.Where("member_id IN ?", memberIDs)
	if structure != "" {
		query = query.Where("structure_type = ?", structure)
	}
	var rows []models.SourceEvent
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListForReplay 按ID游标分批拉取待重放事件
func (r *GormSourceEventRepository) ListForReplay(afterID uint, occurredFrom, occurredTo time.Time, memberID uint, limit int) ([]models.SourceEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Model(&models.SourceEvent{}).
		Where("id > ?", afterID).
		Where("occurred_at >= ? AND occurred_at <= ?", occurredFrom, occurredTo).
		Where("status <> ?", constants.SourceEventStatusReversed)
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}
	var rows []models.SourceEvent
	if err := query.Order("id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HasSubscriptionCoverageAt 判断指定时点是否有订阅事件覆盖
func (r *GormSourceEventRepository) HasSubscriptionCoverageAt(memberID uint, at time.Time) (bool, error) {
	if memberID == 0 {
		return false, nil
	}
	// 覆盖区间为 [occurred_at, occurred_at + period_days)，用追加事件流还原时点状态
	var rows []models.SourceEvent
	err := r.db.
		Select("occurred_at", "period_days").
		Where("member_id = ? AND event_type = ?", memberID, constants.SourceEventTypeSubscription).
		Where("status <> ?", constants.SourceEventStatusReversed).
		Where("occurred_at <= ?", at).
		Find(&rows).Error
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.OccurredAt.AddDate(0, 0, row.PeriodDays).After(at) {
			return true, nil
		}
	}
	return false, nil
}

// HasSubscriptionBefore 判断指定时点之前是否缴纳过订阅
func (r *GormSourceEventRepository) HasSubscriptionBefore(memberID uint, at time.Time) (bool, error) {
	if memberID == 0 {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.SourceEvent{}).
		Where("member_id = ? AND event_type = ?", memberID, constants.SourceEventTypeSubscription).
		Where("status <> ?", constants.SourceEventStatusReversed).
		Where("occurred_at <= ?", at).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestSubscriptionCoverageEnd 返回最近一次订阅覆盖的截止时间
func (r *GormSourceEventRepository) LatestSubscriptionCoverageEnd(memberID uint) (*time.Time, error) {
	if memberID == 0 {
		return nil, nil
	}
	var rows []models.SourceEvent
	err := r.db.
		Select("occurred_at", "period_days").
		Where("member_id = ? AND event_type = ?", memberID, constants.SourceEventTypeSubscription).
		Where("status <> ?", constants.SourceEventStatusReversed).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	var latest *time.Time
	for _, row := range rows {
		end := row.OccurredAt.AddDate(0, 0, row.PeriodDays)
		if latest == nil || end.After(*latest) {
			latest = &end
		}
	}
	return latest, nil
}
