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

// GetMyBalance 查询我的余额
func (h *Handler) GetMyBalance(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	balance, err := h.BalanceService.GetBalance(memberID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "余额查询失败", err)
		return
	}
	response.Success(c, balance)
}

// ListMyCommissions 分页查询我的佣金台账
func (h *Handler) ListMyCommissions(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	level, _ := strconv.Atoi(c.Query("level"))

	filter := repository.CommissionEntryListFilter{
		RecipientID:   memberID,
		StructureType: strings.TrimSpace(c.Query("structure_type")),
		Status:        strings.TrimSpace(c.Query("status")),
		Kind:          strings.TrimSpace(c.Query("kind")),
		Level:         level,
		CreatedFrom:   parseTimeQuery(c.Query("from")),
		CreatedTo:     parseTimeQuery(c.Query("to")),
		Page:          page,
		PageSize:      pageSize,
	}
	rows, total, err := h.StatsService.ListMemberCommissions(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "台账查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// ListMySkips 查询我的未发佣金记录
func (h *Handler) ListMySkips(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	structure := strings.TrimSpace(c.Query("structure_type"))
	rows, err := h.StatsService.ListMemberSkips(memberID, structure)
	if err != nil {
		respondError(c, response.CodeInternal, "跳过记录查询失败", err)
		return
	}
	response.Success(c, rows)
}
