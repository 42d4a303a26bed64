package public

import (
	"errors"

	"github.com/qaznet/partner-core/internal/http/response"
	"github.com/qaznet/partner-core/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Phone        string `json:"phone" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// Register 合伙人注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	member, err := h.MemberService.Register(service.RegisterInput{
		Phone:        req.Phone,
		Name:         req.Name,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		case errors.Is(err, service.ErrPhoneTaken):
			respondError(c, response.CodeConflict, "手机号已注册", nil)
		case errors.Is(err, service.ErrReferralCodeInvalid):
			respondError(c, response.CodeBadRequest, "推荐码无效", nil)
		case errors.Is(err, service.ErrMemberDisabled):
			respondError(c, response.CodeBadRequest, "推荐人账号不可用", nil)
		default:
			respondError(c, response.CodeInternal, "注册失败", err)
		}
		return
	}
	response.Success(c, member)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 合伙人登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	token, member, err := h.MemberService.Login(req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMemberDisabled):
			respondError(c, response.CodeForbidden, "账号已被禁用", nil)
		case errors.Is(err, service.ErrUnauthorized):
			respondError(c, response.CodeUnauthorized, "手机号或密码错误", nil)
		default:
			respondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}
	response.Success(c, gin.H{
		"token":  token,
		"member": member,
	})
}

// GetMe 获取当前合伙人信息
func (h *Handler) GetMe(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	member, err := h.MemberService.GetMember(memberID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, member)
}

// BindSponsorRequest 补绑推荐人请求
type BindSponsorRequest struct {
	ReferralCode  string `json:"referral_code" binding:"required"`
	StructureType string `json:"structure_type" binding:"required"`
}

// BindSponsor 补绑推荐人
func (h *Handler) BindSponsor(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	var req BindSponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	err := h.MemberService.BindSponsor(memberID, req.ReferralCode, req.StructureType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStructure):
			respondError(c, response.CodeBadRequest, "网络结构类型非法", nil)
		case errors.Is(err, service.ErrReferralCodeInvalid):
			respondError(c, response.CodeBadRequest, "推荐码无效", nil)
		case errors.Is(err, service.ErrSelfReferral):
			respondError(c, response.CodeBadRequest, "不能绑定自己为推荐人", nil)
		case errors.Is(err, service.ErrAlreadyBound):
			respondError(c, response.CodeConflict, "该网络已绑定推荐人", nil)
		case errors.Is(err, service.ErrCyclicSponsor):
			respondError(c, response.CodeBadRequest, "绑定会形成循环推荐链", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "合伙人不存在", nil)
		default:
			respondError(c, response.CodeInternal, "绑定失败", err)
		}
		return
	}
	response.Success(c, gin.H{"ok": true})
}
