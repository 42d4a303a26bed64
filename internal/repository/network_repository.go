package repository

import (
	"errors"
	"time"

	"github.com/qaznet/partner-core/internal/models"

	"gorm.io/gorm"
)

// NetworkRepository 推荐关系数据访问接口
type NetworkRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) NetworkRepository

	CreateLink(link *models.SponsorLink) error
	GetLink(memberID uint, structure string) (*models.SponsorLink, error)
	GetSponsorLinkAt(memberID uint, structure string, at time.Time) (*models.SponsorLink, error)
	ListChildren(sponsorIDs []uint, structure string) ([]models.SponsorLink, error)
	CountDirectReferrals(sponsorID uint, structure string) (int64, error)
	CountDirectReferralsAt(sponsorID uint, structure string, at time.Time) (int64, error)
	CountDirectReferralsAtBatch(sponsorIDs []uint, structure string, at time.Time) (map[uint]int64, error)
}

// GormNetworkRepository GORM 推荐关系仓储
type GormNetworkRepository struct {
	db *gorm.DB
}

// NewNetworkRepository 创建推荐关系仓储
func NewNetworkRepository(db *gorm.DB) *GormNetworkRepository {
	return &GormNetworkRepository{db: db}
}

// WithTx 绑定事务
func (r *GormNetworkRepository) WithTx(tx *gorm.DB) NetworkRepository {
	if tx == nil {
		return r
	}
	return &GormNetworkRepository{db: tx}
}

// Transaction 执行事务
func (r *GormNetworkRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// 绑定记录只追加不改写：任一时点的有效绑定取 bound_at 最新的一条，
// 被更新记录覆盖的旧绑定仅用于历史回放。
const linkNotSuperseded = `NOT EXISTS (
	SELECT 1 FROM sponsor_links s2
	WHERE s2.member_id = sponsor_links.member_id
	  AND s2.structure_type = sponsor_links.structure_type
	  AND s2.deleted_at IS NULL
	  AND (s2.bound_at > sponsor_links.bound_at
	    OR (s2.bound_at = sponsor_links.bound_at AND s2.id > sponsor_links.id)))`

const linkNotSupersededAt = `NOT EXISTS (
	SELECT 1 FROM sponsor_links s2
	WHERE s2.member_id = sponsor_links.member_id
	  AND s2.structure_type = sponsor_links.structure_type
	  AND s2.deleted_at IS NULL
	  AND s2.bound_at <= ?
	  AND (s2.bound_at > sponsor_links.bound_at
	    OR (s2.bound_at = sponsor_links.bound_at AND s2.id > sponsor_links.id)))`

// CreateLink 追加绑定记录
func (r *GormNetworkRepository) CreateLink(link *models.SponsorLink) error {
	return r.db.Create(link).Error
}

// GetLink 获取合伙人在指定结构下当前生效的绑定记录
func (r *GormNetworkRepository) GetLink(memberID uint, structure string) (*models.SponsorLink, error) {
	if memberID == 0 {
		return nil, nil
	}
	var link models.SponsorLink
	err := r.db.
		Where("member_id = ? AND structure_type = ?", memberID, structure).
		Order("bound_at desc, id desc").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// GetSponsorLinkAt 获取指定时点生效的绑定记录
func (r *GormNetworkRepository) GetSponsorLinkAt(memberID uint, structure string, at time.Time) (*models.SponsorLink, error) {
	if memberID == 0 {
		return nil, nil
	}
	var link models.SponsorLink
	err := r.db.
		Where("member_id = ? AND structure_type = ? AND bound_at <= ?", memberID, structure, at).
		Order("bound_at desc, id desc").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// ListChildren 批量查询直推下级绑定记录（按绑定时间升序）
func (r *GormNetworkRepository) ListChildren(sponsorIDs []uint, structure string) ([]models.SponsorLink, error) {
	if len(sponsorIDs) == 0 {
		return nil, nil
	}
	var links []models.SponsorLink
	err := r.db.
		Where("sponsor_id IN ? AND structure_type = ?", sponsorIDs, structure).
		Where(linkNotSuperseded).
		Order("bound_at asc, id asc").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// CountDirectReferrals 统计当前直推人数
func (r *GormNetworkRepository) CountDirectReferrals(sponsorID uint, structure string) (int64, error) {
	return r.CountDirectReferralsAt(sponsorID, structure, time.Now())
}

// CountDirectReferralsAt 统计指定时点已绑定的直推人数
func (r *GormNetworkRepository) CountDirectReferralsAt(sponsorID uint, structure string, at time.Time) (int64, error) {
	if sponsorID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.SponsorLink{}).
		Where("sponsor_id = ? AND structure_type = ? AND bound_at <= ?", sponsorID, structure, at).
		Where(linkNotSupersededAt, at).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountDirectReferralsAtBatch 批量统计指定时点的直推人数
func (r *GormNetworkRepository) CountDirectReferralsAtBatch(sponsorIDs []uint, structure string, at time.Time) (map[uint]int64, error) {
	result := make(map[uint]int64, len(sponsorIDs))
	if len(sponsorIDs) == 0 {
		return result, nil
	}
	type row struct {
		SponsorID uint
		Total     int64
	}
	var rows []row
	err := r.db.Model(&models.SponsorLink{}).
		Select("sponsor_id, COUNT(*) AS total").
		Where("sponsor_id IN ? AND structure_type = ? AND bound_at <= ?", sponsorIDs, structure, at).
		Where(linkNotSupersededAt, at).
		Group("sponsor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, item := range rows {
		result[item.SponsorID] = item.Total
	}
	return result, nil
}
