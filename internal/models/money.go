package models

import (
	"github.com/shopspring/decimal"
)

// 金额约定：全链路使用整数坚戈（KZT 无辅币单位），
// 仅比例计算过程使用 decimal，落库与出参前四舍五入取整。

// PercentOf 按百分比计算金额，逢五进一取整到整数坚戈
func PercentOf(amount int64, percent decimal.Decimal) int64 {
	if amount <= 0 || percent.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	value := decimal.NewFromInt(amount).Mul(percent).Div(decimal.NewFromInt(100))
	return RoundHalfUpTenge(value)
}

// RoundHalfUpTenge 逢五进一取整到整数坚戈
func RoundHalfUpTenge(value decimal.Decimal) int64 {
	if value.IsNegative() {
		return -value.Neg().Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
	}
	return value.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}
