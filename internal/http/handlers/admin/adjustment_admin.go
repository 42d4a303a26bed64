package admin

import (
	"errors"
	"strconv"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateAdjustmentRequest 人工余额调整请求
type CreateAdjustmentRequest struct {
	MemberID  uint   `json:"member_id" binding:"required"`
	Direction string `json:"direction" binding:"required"` // credit / debit
	Amount    int64  `json:"amount" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

// CreateAdjustment 人工调整合伙人余额
func (h *Handler) CreateAdjustment(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	adjustment, err := h.BalanceService.AdjustBalance(service.AdjustBalanceInput{
		MemberID:  req.MemberID,
		Direction: req.Direction,
		Amount:    req.Amount,
		Reason:    req.Reason,
		AdminID:   adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			respondError(c, response.CodeBadRequest, "调整金额非法", nil)
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "余额调整失败", err)
		}
		return
	}
	response.Success(c, adjustment)
}

// ListAdjustments 分页查询人工调整记录
func (h *Handler) ListAdjustments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	memberID, _ := strconv.ParseUint(c.Query("member_id"), 10, 64)

	rows, total, err := h.BalanceService.ListAdjustments(uint(memberID), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "调整记录查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}
