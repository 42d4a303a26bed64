package models

import (
	"time"

	"gorm.io/gorm"
)

// BalanceAdjustment 人工余额调整记录（管理员加扣款，只追加）
type BalanceAdjustment struct {
	ID        uint           `gorm:"primarykey" json:"id"`                             // 主键
	MemberID  uint           `gorm:"not null;index" json:"member_id"`                  // 合伙人ID
	Direction string         `gorm:"type:varchar(8);not null" json:"direction"`        // 调整方向（credit/debit）
	Amount    int64          `gorm:"not null" json:"amount"`                           // 调整金额（整数坚戈，恒为正）
	Reason    string         `gorm:"type:varchar(255);not null" json:"reason"`         // 调整原因
	CreatedBy uint           `gorm:"not null;index" json:"created_by"`                 // 操作管理员ID
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 合伙人
}

// TableName 指定表名
func (BalanceAdjustment) TableName() string {
	return "balance_adjustments"
}
