package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionSkip 未发佣金原因记录（审计用，后续补发会落真实台账条目）
type CommissionSkip struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                                                        // 主键
	SourceEventID uint           `gorm:"not null;index;index:idx_commission_skip_unique,unique" json:"source_event_id"`               // 来源事件ID
	RecipientID   uint           `gorm:"not null;index;index:idx_commission_skip_unique,unique" json:"recipient_id"`                  // 应受益合伙人ID
	Level         int            `gorm:"not null;index:idx_commission_skip_unique,unique" json:"level"`                               // 相对层级
	StructureType string         `gorm:"type:varchar(16);not null;index:idx_commission_skip_unique,unique" json:"structure_type"`     // 网络结构类型
	Reason        string         `gorm:"type:varchar(64);not null;index" json:"reason"`                                               // 未发原因标签
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                                                     // 创建时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                                              // 软删除时间
}

// TableName 指定表名
func (CommissionSkip) TableName() string {
	return "commission_skips"
}
