package models

import (
	"time"

	"gorm.io/gorm"
)

// Member 合伙人账号表
type Member struct {
	ID                    uint           `gorm:"primarykey" json:"id"`                               // 主键
	Phone                 string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"` // 手机号（登录账号）
	Name                  string         `gorm:"type:varchar(128);not null" json:"name"`             // 姓名
	PasswordHash          string         `gorm:"not null" json:"-"`                                  // 密码哈希（不返回给前端）
	ReferralCode          string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"referral_code"` // 推荐码
	Status                string         `gorm:"type:varchar(16);not null;default:'active';index" json:"status"` // 账号状态
	SubscriptionStatus    string         `gorm:"type:varchar(16);not null;default:'never';index" json:"subscription_status"` // 订阅状态快照
	SubscriptionPaidUntil *time.Time     `gorm:"index" json:"subscription_paid_until,omitempty"`     // 订阅覆盖截止时间快照
	MonthlyActive         bool           `gorm:"not null;default:false" json:"monthly_active"`       // 当月活跃标记
	MarketingExempt       bool           `gorm:"not null;default:false;index" json:"marketing_exempt"` // 市场赠送账号（其消费不产生佣金）
	LastLoginAt           *time.Time     `json:"last_login_at"`                                      // 最后登录时间
	CreatedAt             time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt             time.Time      `json:"updated_at"`                                         // 更新时间
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}
