package constants

// 网络结构常量（订阅网络/消费网络两套并行层级）
const (
	StructureSubscription = "subscription"
	StructureProduct      = "product"
)

// 各结构的最大佣金层级
const (
	MaxLevelSubscription = 5
	MaxLevelProduct      = 10
)

// 合伙人状态常量
const (
	MemberStatusActive   = "active"
	MemberStatusDisabled = "disabled"
)

// 订阅状态常量
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusLapsed  = "lapsed"
	SubscriptionStatusNever   = "never"
	SubscriptionStatusPending = "pending"
)

// 来源事件类型常量
const (
	SourceEventTypeSubscription = "subscription_payment"
	SourceEventTypeOrder        = "product_order"
)

// 来源事件状态常量
const (
	SourceEventStatusRecorded    = "recorded"
	SourceEventStatusDistributed = "distributed"
	SourceEventStatusReversed    = "reversed"
)

// 佣金台账状态常量
const (
	CommissionStatusPending    = "pending"
	CommissionStatusProcessing = "processing"
	CommissionStatusCompleted  = "completed"
	CommissionStatusFrozen     = "frozen"
	CommissionStatusFailed     = "failed"
)

// 佣金台账条目类型常量。
// 补发走 level 类型复用同一幂等键，避免与正常分佣并存造成双发。
const (
	CommissionKindLevel    = "level"
	CommissionKindReversal = "reversal"
)

// 未发佣金原因常量
const (
	NoCommissionSubscriptionNotActive = "subscription_not_active"
	NoCommissionTooDeep               = "too_deep"
	NoCommissionSponsorInactive       = "sponsor_inactive"
	NoCommissionMarketingFreeAccess   = "marketing_free_access"
	NoCommissionUnknown               = "unknown"
)

// NoCommissionLevelLocked 层级未解锁原因（格式 level_2_locked）
func NoCommissionLevelLocked(level int) string {
	switch level {
	case 2:
		return "level_2_locked"
	case 3:
		return "level_3_locked"
	case 4:
		return "level_4_locked"
	case 5:
		return "level_5_locked"
	default:
		return NoCommissionUnknown
	}
}

// 对账结论常量
const (
	AuditResultOK        = "OK"
	AuditResultMissing   = "MISSING"
	AuditResultUnderpaid = "UNDERPAID"
	AuditResultOverpaid  = "OVERPAID"
)

// 提现状态常量
const (
	WithdrawStatusPendingReview = "pending_review"
	WithdrawStatusRejected      = "rejected"
	WithdrawStatusPaid          = "paid"
)

// 提现审核动作常量
const (
	WithdrawActionReject = "reject"
	WithdrawActionPay    = "pay"
)

// 余额调整方向常量
const (
	AdjustmentDirectionCredit = "credit"
	AdjustmentDirectionDebit  = "debit"
)

// 异步任务类型常量
const (
	TaskCommissionDistribute = "commission:distribute"
	TaskEventReverse         = "commission:reverse_event"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 订阅结构层级解锁所需直推人数（L1 无门槛）
var SubscriptionUnlockThresholds = map[int]int{
	2: 3,
	3: 5,
	4: 8,
	5: 10,
}

// StructureMaxLevel 返回结构的最大层级
func StructureMaxLevel(structure string) int {
	if structure == StructureProduct {
		return MaxLevelProduct
	}
	return MaxLevelSubscription
}

// IsValidStructure 判断结构类型是否合法
func IsValidStructure(structure string) bool {
	return structure == StructureSubscription || structure == StructureProduct
}
