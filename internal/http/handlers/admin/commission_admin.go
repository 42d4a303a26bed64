package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/queue"
	"github.com/qaznet/partner-core/internal/repository"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// ListEvents 分页查询来源事件
func (h *Handler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	memberID, _ := strconv.ParseUint(c.Query("member_id"), 10, 64)

	rows, total, err := h.EventRepo.List(repository.SourceEventListFilter{
		MemberID:      uint(memberID),
		EventType:     strings.TrimSpace(c.Query("event_type")),
		StructureType: strings.TrimSpace(c.Query("structure_type")),
		Status:        strings.TrimSpace(c.Query("status")),
		OccurredFrom:  parseTimeQuery(c.Query("from")),
		OccurredTo:    parseTimeQuery(c.Query("to")),
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "事件查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.NewPagination(page, pageSize, total))
}

// ListEventEntries 查询事件的台账条目与跳过记录
func (h *Handler) ListEventEntries(c *gin.Context) {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	entries, err := h.LedgerRepo.ListEntriesByEvent(eventID)
	if err != nil {
		respondError(c, response.CodeInternal, "台账查询失败", err)
		return
	}
	skips, err := h.LedgerRepo.ListSkipsByEvent(eventID)
	if err != nil {
		respondError(c, response.CodeInternal, "台账查询失败", err)
		return
	}
	response.Success(c, gin.H{
		"entries": entries,
		"skips":   skips,
	})
}

// ReverseEventRequest 事件冲正请求
type ReverseEventRequest struct {
	Note string `json:"note"`
}

// ReverseEvent 冲正事件产生的全部佣金
func (h *Handler) ReverseEvent(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	eventID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	// 冲正说明可省略，空 body 合法
	var req ReverseEventRequest
	_ = c.ShouldBindJSON(&req)

	// 有队列时走高优先级队列，保证冲正不插在普通分佣后面排队
	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueReverseWithNote(eventID, req.Note); err != nil && !errors.Is(err, queue.ErrQueueDisabled) {
			respondError(c, response.CodeInternal, "冲正任务入队失败", err)
			return
		} else if err == nil {
			requestLog(c).Warnw("event_reverse_enqueued", "event_id", eventID, "admin_id", adminID)
			response.Success(c, gin.H{"enqueued": true})
			return
		}
	}

	if err := h.CommissionService.ReverseSourceEvent(eventID, req.Note); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "事件不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "冲正失败", err)
		return
	}
	requestLog(c).Warnw("event_reversed", "event_id", eventID, "admin_id", adminID)
	response.Success(c, gin.H{"enqueued": false})
}

// AuditMember 重算合伙人应得佣金并输出对账报告
func (h *Handler) AuditMember(c *gin.Context) {
	memberID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	report, err := h.ReconcileService.AuditMemberCommissions(memberID)
	if err != nil {
		if errors.Is(err, service.ErrRuleNotConfigured) {
			respondError(c, response.CodeInternal, "佣金规则未配置", nil)
			return
		}
		respondError(c, response.CodeInternal, "对账失败", err)
		return
	}
	response.Success(c, report)
}

// BackfillRequest 补发请求
type BackfillRequest struct {
	MemberID uint      `json:"member_id"`
	From     time.Time `json:"from" binding:"required"`
	To       time.Time `json:"to" binding:"required"`
	DryRun   bool      `json:"dry_run"`
}

// Backfill 补发历史漏发佣金
func (h *Handler) Backfill(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.ReconcileService.Backfill(service.BackfillInput{
		MemberID: req.MemberID,
		From:     req.From,
		To:       req.To,
		DryRun:   req.DryRun,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "时间窗口非法", nil)
		case errors.Is(err, service.ErrBackfillWindowTooWide):
			respondError(c, response.CodeBadRequest, "补发时间窗口过大", nil)
		case errors.Is(err, service.ErrRuleNotConfigured):
			respondError(c, response.CodeInternal, "佣金规则未配置", nil)
		default:
			respondError(c, response.CodeInternal, "补发失败", err)
		}
		return
	}
	if !result.DryRun {
		requestLog(c).Warnw("commission_backfill_executed",
			"admin_id", adminID,
			"member_id", req.MemberID,
			"created", result.CreatedEntries,
			"amount_created", result.AmountCreated,
		)
	}
	response.Success(c, result)
}

// ThawCommissions 手动触发到期解冻与待确认到账
func (h *Handler) ThawCommissions(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	now := time.Now()
	thawed, err := h.BalanceService.ThawDueCommissions(now)
	if err != nil {
		respondError(c, response.CodeInternal, "解冻失败", err)
		return
	}
	confirmed, err := h.BalanceService.ConfirmDueCommissions(now)
	if err != nil {
		respondError(c, response.CodeInternal, "确认到账失败", err)
		return
	}
	requestLog(c).Infow("commission_sweep_triggered", "admin_id", adminID, "thawed", thawed, "confirmed", confirmed)
	response.Success(c, gin.H{
		"thawed":    thawed,
		"confirmed": confirmed,
	})
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
