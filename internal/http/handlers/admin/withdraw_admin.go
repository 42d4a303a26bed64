package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// ListWithdraws 分页查询提现申请
func (h *Handler) ListWithdraws(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	memberID, _ := strconv.ParseUint(c.Query("member_id"), 10, 64)

	rows, total, err := h.WithdrawService.List(repository.WithdrawListFilter{
		MemberID:    uint(memberID),
		Status:      strings.TrimSpace(c.Query("status")),
		CreatedFrom: parseTimeQuery(c.Query("from")),
		CreatedTo:   parseTimeQuery(c.Query("to")),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "提现记录查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// ReviewWithdrawRequest 提现审核请求
type ReviewWithdrawRequest struct {
	Action string `json:"action" binding:"required"` // reject / pay
	Remark string `json:"remark"`
}

// ReviewWithdraw 审核提现申请
func (h *Handler) ReviewWithdraw(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	requestID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req ReviewWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	request, err := h.WithdrawService.Review(requestID, req.Action, req.Remark, adminID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "提现申请不存在", nil)
		case errors.Is(err, service.ErrWithdrawNotReviewable):
			respondError(c, response.CodeConflict, "申请已审核", nil)
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "审核动作非法", nil)
		default:
			respondError(c, response.CodeInternal, "审核失败", err)
		}
		return
	}
	response.Success(c, request)
}
