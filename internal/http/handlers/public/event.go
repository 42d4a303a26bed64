package public

import (
	"errors"
	"time"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// RecordEventRequest 来源事件上报请求（计费/订单系统回调）
type RecordEventRequest struct {
	EventNo    string     `json:"event_no"`
	MemberID   uint       `json:"member_id" binding:"required"`
	EventType  string     `json:"event_type" binding:"required"`
	Amount     int64      `json:"amount" binding:"required"`
	PeriodDays int        `json:"period_days"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// RecordEvent 录入来源事件并触发分佣
func (h *Handler) RecordEvent(c *gin.Context) {
	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	event, err := h.CommissionService.RecordSourceEvent(service.RecordSourceEventInput{
		EventNo:    req.EventNo,
		MemberID:   req.MemberID,
		EventType:  req.EventType,
		Amount:     req.Amount,
		PeriodDays: req.PeriodDays,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			respondError(c, response.CodeBadRequest, "事件金额非法", nil)
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "事件类型非法", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		case errors.Is(err, service.ErrEventDuplicated):
			respondError(c, response.CodeConflict, "事件已存在", nil)
		case errors.Is(err, service.ErrRuleNotConfigured):
			respondError(c, response.CodeInternal, "佣金规则未配置", nil)
		default:
			respondError(c, response.CodeInternal, "事件录入失败", err)
		}
		return
	}
	response.Success(c, event)
}
