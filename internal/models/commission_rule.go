package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionRule 佣金比例规则表（只追加版本，按 effective_from 取最新生效版本）
type CommissionRule struct {
	ID            uint            `gorm:"primarykey" json:"id"`                                      // 主键
	StructureType string          `gorm:"type:varchar(16);not null;index" json:"structure_type"`     // 网络结构类型
	Level         int             `gorm:"not null;index" json:"level"`                               // 层级（1 起）
	Percent       decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"percent"`                // 佣金比例（百分比）
	EffectiveFrom time.Time       `gorm:"not null;index" json:"effective_from"`                      // 生效时间
	CreatedBy     uint            `gorm:"not null;default:0" json:"created_by"`                      // 创建管理员ID（0 表示种子数据）
	Note          string          `gorm:"type:varchar(255)" json:"note"`                             // 备注
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`                                   // 创建时间
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`                                            // 软删除时间
}

// TableName 指定表名
func (CommissionRule) TableName() string {
	return "commission_rules"
}
