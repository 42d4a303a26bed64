package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListRules 分页查询规则版本历史
func (h *Handler) ListRules(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	level, _ := strconv.Atoi(c.Query("level"))

	rows, total, err := h.RuleService.ListHistory(repository.RuleListFilter{
		StructureType: strings.TrimSpace(c.Query("structure_type")),
		Level:         level,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "规则查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// GetActiveRules 查询指定时点生效的规则集
func (h *Handler) GetActiveRules(c *gin.Context) {
	structure := strings.TrimSpace(c.DefaultQuery("structure_type", constants.StructureSubscription))
	at := time.Now()
	if parsed := parseTimeQuery(c.Query("at")); parsed != nil {
		at = *parsed
	}

	ruleSet, err := h.RuleService.ActiveRuleSet(structure, at)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStructure) {
			respondError(c, response.CodeBadRequest, "网络结构类型非法", nil)
			return
		}
		respondError(c, response.CodeInternal, "规则查询失败", err)
		return
	}
	response.Success(c, gin.H{
		"structure_type": structure,
		"at":             at,
		"rules":          ruleSet,
	})
}

// CreateRuleRequest 发布规则版本请求
type CreateRuleRequest struct {
	StructureType string     `json:"structure_type" binding:"required"`
	Level         int        `json:"level" binding:"required"`
	Percent       string     `json:"percent" binding:"required"`
	EffectiveFrom *time.Time `json:"effective_from"`
	Note          string     `json:"note"`
}

// CreateRule 发布新规则版本
func (h *Handler) CreateRule(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	percent, err := decimal.NewFromString(strings.TrimSpace(req.Percent))
	if err != nil {
		respondError(c, response.CodeBadRequest, "比例格式非法", nil)
		return
	}
	effectiveFrom := time.Time{}
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	rule, err := h.RuleService.CreateVersion(service.RuleVersionInput{
		StructureType: req.StructureType,
		Level:         req.Level,
		Percent:       percent,
		EffectiveFrom: effectiveFrom,
		AdminID:       adminID,
		Note:          req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStructure):
			respondError(c, response.CodeBadRequest, "网络结构类型非法", nil)
		case errors.Is(err, service.ErrRuleLevelRange):
			respondError(c, response.CodeBadRequest, "层级超出范围", nil)
		case errors.Is(err, service.ErrRulePercentRange):
			respondError(c, response.CodeBadRequest, "比例超出范围", nil)
		default:
			respondError(c, response.CodeInternal, "规则发布失败", err)
		}
		return
	}
	response.Success(c, rule)
}
