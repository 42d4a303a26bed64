package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionEntry 佣金台账条目（只追加，纠错通过负额冲正条目实现）
type CommissionEntry struct {
	ID            uint            `gorm:"primarykey" json:"id"`                                                                        // 主键
	SourceEventID uint            `gorm:"not null;index;index:idx_commission_entry_unique,unique" json:"source_event_id"`              // 来源事件ID
	RecipientID   uint            `gorm:"not null;index;index:idx_commission_entry_unique,unique" json:"recipient_id"`                 // 受益合伙人ID
	Level         int             `gorm:"not null;index:idx_commission_entry_unique,unique" json:"level"`                              // 相对层级
	StructureType string          `gorm:"type:varchar(16);not null;index;index:idx_commission_entry_unique,unique" json:"structure_type"` // 网络结构类型
	Kind          string          `gorm:"type:varchar(16);not null;default:'level';index:idx_commission_entry_unique,unique" json:"kind"` // 条目类型（level/backfill/reversal）
	BaseAmount    int64           `gorm:"not null" json:"base_amount"`                                                                 // 佣金基数（整数坚戈）
	RatePercent   decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate_percent"`                                             // 计提比例（百分比）
	Amount        int64           `gorm:"not null" json:"amount"`                                                                      // 佣金金额（整数坚戈，冲正为负）
	Status        string          `gorm:"type:varchar(16);not null;index" json:"status"`                                               // 台账状态
	ConfirmAt     *time.Time      `gorm:"index" json:"confirm_at,omitempty"`                                                           // 待确认到期时间（pending 转 completed）
	FrozenUntil   *time.Time      `gorm:"index" json:"frozen_until,omitempty"`                                                         // 冻结到期时间（空表示等复购解冻）
	ThawedAt      *time.Time      `json:"thawed_at,omitempty"`                                                                         // 解冻时间
	Note          string          `gorm:"type:varchar(255)" json:"note"`                                                               // 备注（补发/冲正说明）
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`                                                                     // 创建时间
	UpdatedAt     time.Time       `json:"updated_at"`                                                                                  // 更新时间
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`                                                                              // 软删除时间

	SourceEvent SourceEvent `gorm:"foreignKey:SourceEventID" json:"source_event,omitempty"` // 来源事件
	Recipient   Member      `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`      // 受益合伙人
}

// TableName 指定表名
func (CommissionEntry) TableName() string {
	return "commission_entries"
}
