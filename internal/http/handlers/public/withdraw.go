package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// WithdrawApplyRequest 提现申请请求
type WithdrawApplyRequest struct {
	Amount  int64  `json:"amount" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Account string `json:"account" binding:"required"`
}

// ApplyWithdraw 提交提现申请
func (h *Handler) ApplyWithdraw(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	var req WithdrawApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	request, err := h.WithdrawService.Apply(service.WithdrawApplyInput{
		MemberID: memberID,
		Amount:   req.Amount,
		Channel:  req.Channel,
		Account:  req.Account,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			respondError(c, response.CodeBadRequest, "提现金额非法", nil)
		case errors.Is(err, service.ErrWithdrawBelowMin):
			respondError(c, response.CodeBadRequest, "低于最低提现金额", nil)
		case errors.Is(err, service.ErrWithdrawChannel):
			respondError(c, response.CodeBadRequest, "提现渠道不支持", nil)
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		case errors.Is(err, service.ErrMemberDisabled):
			respondError(c, response.CodeForbidden, "账号已被禁用", nil)
		case errors.Is(err, service.ErrInsufficientBalance):
			respondError(c, response.CodeBadRequest, "可提现余额不足", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "提现申请失败", err)
		}
		return
	}
	response.Success(c, request)
}

// ListMyWithdraws 分页查询我的提现申请
func (h *Handler) ListMyWithdraws(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.WithdrawService.List(repository.WithdrawListFilter{
		MemberID: memberID,
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "提现记录查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}
