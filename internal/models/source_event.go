package models

import (
	"time"

	"gorm.io/gorm"
)

// SourceEvent 佣金来源事件（订阅缴费或商品订单，只追加）
type SourceEvent struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                           // 主键
	EventNo       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_no"`          // 事件编号（外部幂等键）
	MemberID      uint           `gorm:"not null;index" json:"member_id"`                                // 产生事件的合伙人ID
	EventType     string         `gorm:"type:varchar(32);not null;index" json:"event_type"`              // 事件类型
	StructureType string         `gorm:"type:varchar(16);not null;index" json:"structure_type"`          // 分佣走的网络结构
	Amount        int64          `gorm:"not null" json:"amount"`                                         // 金额（整数坚戈）
	PeriodDays    int            `gorm:"not null;default:0" json:"period_days"`                          // 订阅覆盖天数（订单事件为 0）
	Status        string         `gorm:"type:varchar(16);not null;default:'recorded';index" json:"status"` // 事件状态
	OccurredAt    time.Time      `gorm:"not null;index" json:"occurred_at"`                              // 业务发生时间（资格评估时点）
	DistributedAt *time.Time     `json:"distributed_at,omitempty"`                                       // 分佣完成时间
	ReversedAt    *time.Time     `json:"reversed_at,omitempty"`                                          // 冲正时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                                     // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                 // 软删除时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 产生事件的合伙人
}

// TableName 指定表名
func (SourceEvent) TableName() string {
	return "source_events"
}
