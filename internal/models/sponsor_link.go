package models

import (
	"time"

	"gorm.io/gorm"
)

// SponsorLink 推荐关系绑定记录。只追加不改写：管理员改绑消费网络
// 上级时追加一条新记录覆盖旧绑定，历史时点的归属随时可回放。
type SponsorLink struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                                                    // 主键
	MemberID      uint           `gorm:"not null;index;index:idx_sponsor_link_unique,unique" json:"member_id"`                    // 被推荐合伙人ID
	SponsorID     uint           `gorm:"not null;index" json:"sponsor_id"`                                                        // 推荐人ID
	StructureType string         `gorm:"type:varchar(16);not null;index;index:idx_sponsor_link_unique,unique" json:"structure_type"` // 网络结构类型
	BoundAt       time.Time      `gorm:"not null;index;index:idx_sponsor_link_unique,unique" json:"bound_at"`                     // 绑定生效时间（时点查询依据）
	BoundBy       string         `gorm:"type:varchar(16);not null;default:'referral'" json:"bound_by"`                            // 绑定来源（referral/admin）
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                                                 // 创建时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                                          // 软删除时间

	Member  Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`   // 被推荐合伙人
	Sponsor Member `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"` // 推荐人
}

// TableName 指定表名
func (SponsorLink) TableName() string {
	return "sponsor_links"
}
