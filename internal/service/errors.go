package service

import "errors"

// 服务层哨兵错误，handler 用 errors.Is 映射为稳定的错误码。
var (
	ErrNotFound         = errors.New("记录不存在")
	ErrValidation       = errors.New("参数校验失败")
	ErrUnauthorized     = errors.New("认证失败")
	ErrForbidden        = errors.New("无权限操作")
	ErrConcurrencyRetry = errors.New("并发冲突，请重试")

	ErrMemberDisabled      = errors.New("合伙人账号已停用")
	ErrPhoneTaken          = errors.New("手机号已注册")
	ErrReferralCodeInvalid = errors.New("推荐码无效")
	ErrSelfReferral        = errors.New("不能绑定自己为推荐人")
	ErrAlreadyBound        = errors.New("已绑定推荐人，不可变更")
	ErrCyclicSponsor       = errors.New("绑定会造成推荐链成环")

	ErrEventDuplicated   = errors.New("事件编号已存在")
	ErrEventReversed     = errors.New("事件已冲正")
	ErrInvalidStructure  = errors.New("非法网络结构类型")
	ErrInvalidAmount     = errors.New("金额必须为正整数坚戈")
	ErrRuleNotConfigured = errors.New("该时点无生效佣金规则")
	ErrRulePercentRange  = errors.New("佣金比例超出允许范围")
	ErrRuleLevelRange    = errors.New("佣金层级超出结构上限")

	ErrInsufficientBalance   = errors.New("可提现余额不足")
	ErrWithdrawBelowMin      = errors.New("提现金额低于最低限额")
	ErrWithdrawChannel       = errors.New("不支持的提现渠道")
	ErrWithdrawNotReviewable = errors.New("提现申请不在待审核状态")

	ErrBackfillWindowTooWide = errors.New("补发时间窗口超出上限")
)
