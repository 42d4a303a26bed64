package models

import (
	"time"

	"gorm.io/gorm"
)

// WithdrawRequest 提现申请表
type WithdrawRequest struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                               // 主键
	RequestNo    string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`            // 申请编号
	MemberID     uint           `gorm:"not null;index" json:"member_id"`                                    // 申请合伙人ID
	Amount       int64          `gorm:"not null" json:"amount"`                                             // 提现金额（整数坚戈）
	Channel      string         `gorm:"type:varchar(32);not null" json:"channel"`                           // 提现渠道
	Account      string         `gorm:"type:varchar(128);not null" json:"account"`                          // 收款账号
	Status       string         `gorm:"type:varchar(20);not null;default:'pending_review';index" json:"status"` // 申请状态
	ReviewedBy   *uint          `gorm:"index" json:"reviewed_by,omitempty"`                                 // 审核管理员ID
	ReviewedAt   *time.Time     `json:"reviewed_at,omitempty"`                                              // 审核时间
	ReviewRemark string         `gorm:"type:varchar(255)" json:"review_remark"`                             // 审核备注
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                                         // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                                     // 软删除时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 申请合伙人
}

// TableName 指定表名
func (WithdrawRequest) TableName() string {
	return "withdraw_requests"
}
