package public

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/constants"
	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// GetMyNetwork 查询我的推荐网络
func (h *Handler) GetMyNetwork(c *gin.Context) {
	memberID, ok := getMemberID(c)
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

// GetMyStats 查询我的逐层统计
func (h *Handler) GetMyStats(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	structure := strings.TrimSpace(c.DefaultQuery("structure_type", constants.StructureSubscription))
	from := parseTimeQuery(c.Query("from"))
	to := parseTimeQuery(c.Query("to"))

	stats, err := h.StatsService.StructureStatsFor(memberID, structure, from, to)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStructure):
			respondError(c, response.CodeBadRequest, "网络结构类型非法", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "统计查询失败", err)
		}
		return
	}
	response.Success(c, stats)
}

func parseTimeQuery(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}
