package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// ListMembers 分页查询合伙人
func (h *Handler) ListMembers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.MemberListFilter{
		Keyword:            strings.TrimSpace(c.Query("keyword")),
		Status:             strings.TrimSpace(c.Query("status")),
		SubscriptionStatus: strings.TrimSpace(c.Query("subscription_status")),
		Page:               page,
		PageSize:           pageSize,
	}
	if exempt := strings.TrimSpace(c.Query("marketing_exempt")); exempt != "" {
		value := exempt == "true" || exempt == "1"
		filter.MarketingExempt = &value
	}

	rows, total, err := h.MemberService.ListMembers(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "合伙人查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// GetMember 查询合伙人详情
func (h *Handler) GetMember(c *gin.Context) {
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	member, err := h.MemberService.GetMember(memberID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "合伙人查询失败", err)
		return
	}
	response.Success(c, member)
}

// SetMemberStatusRequest 启停账号请求
type SetMemberStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetMemberStatus 启停合伙人账号
func (h *Handler) SetMemberStatus(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req SetMemberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.MemberService.SetMemberStatus(memberID, req.Status, adminID); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "状态值非法", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "保存失败", err)
		}
		return
	}
	response.Success(c, nil)
}

// SetMarketingExemptRequest 市场赠送标记请求
type SetMarketingExemptRequest struct {
	Exempt *bool `json:"exempt" binding:"required"`
}

// SetMarketingExempt 设置市场赠送标记
func (h *Handler) SetMarketingExempt(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req SetMarketingExemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.MemberService.SetMarketingExempt(memberID, *req.Exempt, adminID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "保存失败", err)
		return
	}
	response.Success(c, nil)
}

// OverrideProductSponsorRequest 改写消费网络上级请求
type OverrideProductSponsorRequest struct {
	SponsorID uint `json:"sponsor_id" binding:"required"`
}

// OverrideProductSponsor 改写合伙人的消费网络上级
func (h *Handler) OverrideProductSponsor(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req OverrideProductSponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.MemberService.OverrideProductSponsor(memberID, req.SponsorID, adminID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		case errors.Is(err, service.ErrSelfReferral):
			respondError(c, response.CodeBadRequest, "不能绑定自己为上级", nil)
		case errors.Is(err, service.ErrCyclicSponsor):
			respondError(c, response.CodeBadRequest, "改写会形成循环推荐链", nil)
		default:
			respondError(c, response.CodeInternal, "保存失败", err)
		}
		return
	}
	response.Success(c, nil)
}

// GetMemberNetwork 查询合伙人网络视图
func (h *Handler) GetMemberNetwork(c *gin.Context) {
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	structure := strings.TrimSpace(c.DefaultQuery("structure_type", constants.StructureSubscription))
	maxLevels, _ := strconv.Atoi(c.DefaultQuery("max_levels", "0"))
	if maxLevels <= 0 || maxLevels > constants.StructureMaxLevel(structure) {
		maxLevels = constants.StructureMaxLevel(structure)
	}

	view, err := h.StatsService.ResolveNetwork(memberID, structure, maxLevels)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStructure):
			respondError(c, response.CodeBadRequest, "网络结构类型非法", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "网络查询失败", err)
		}
		return
	}
	response.Success(c, view)
}

// GetMemberBalance 查询合伙人余额
func (h *Handler) GetMemberBalance(c *gin.Context) {
	memberID, ok := paramUint(c, "id")
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

func paramUint(c *gin.Context, key string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Param(key)), 10, 64)
	if err != nil || value == 0 {
		respondError(c, response.CodeBadRequest, "路径参数非法", nil)
		return 0, false
	}
	return uint(value), true
}
