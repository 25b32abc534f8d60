package handler

import (
	"errors"
	"fitclub/internal/domain/checkin/model"
	"fitclub/internal/domain/checkin/service"
	memberModel "fitclub/internal/domain/member/model"
	"fitclub/internal/domain/membership/entitlement"
	membershipRepo "fitclub/internal/domain/membership/repository"
	"fitclub/internal/pkg/middleware"
	"fitclub/pkg/logger"
	"fitclub/pkg/response"
	"fitclub/pkg/utils"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 512

// CheckInHandler 入场处理器
type CheckInHandler struct {
	tokens service.TokenService
	ledger service.Ledger
	now    func() time.Time
}

// NewCheckInHandler 创建处理器
func NewCheckInHandler(tokens service.TokenService, ledger service.Ledger, now func() time.Time) *CheckInHandler {
	return &CheckInHandler{tokens: tokens, ledger: ledger, now: now}
}

// IssueTokenInput 申请入场码，不传会员卡时使用当前有效的卡
type IssueTokenInput struct {
	MembershipID string `json:"membershipId" binding:"omitempty,uuid"`
}

// ScanInput 前台扫码输入
type ScanInput struct {
	Token string `json:"token" binding:"required,max=64"`
}

// ManualCheckInInput 人工登记输入
type ManualCheckInInput struct {
	UserID       string `json:"userId" binding:"required,uuid"`
	MembershipID string `json:"membershipId" binding:"omitempty,uuid"`
	Notes        string `json:"notes" binding:"max=500"`
	Method       string `json:"method" binding:"omitempty,checkin_method"`
}

// IssueToken 会员申请入场码，冷却期内重复请求返回同一个码
func (h *CheckInHandler) IssueToken(c *gin.Context) {
	var input IssueTokenInput
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	res, err := h.issue(c, input.MembershipID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// TokenQR 以 PNG 返回当前入场码的二维码
func (h *CheckInHandler) TokenQR(c *gin.Context) {
	res, err := h.issue(c, c.Query("membershipId"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	png, err := qrcode.Encode(res.Value, qrcode.Medium, qrSize)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Failed to render QR code")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Token-Expires-At", res.ExpiresAt.UTC().Format(time.RFC3339))
	c.Header("X-Token-Expires-In", strconv.Itoa(res.ExpiresIn))
	c.Data(http.StatusOK, "image/png", png)
}

func (h *CheckInHandler) issue(c *gin.Context, membershipID string) (*service.IssueResult, error) {
	userID := middleware.CurrentUserID(c)
	if membershipID == "" {
		return h.tokens.IssueForActive(c.Request.Context(), userID, h.now())
	}
	return h.tokens.Issue(c.Request.Context(), userID, membershipID, h.now())
}

// Peek 扫码界面的只读预检，不作为入场依据
func (h *CheckInHandler) Peek(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "token is required")
		return
	}

	res, err := h.tokens.Peek(c.Request.Context(), token, h.now())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// Scan 前台扫码核销
func (h *CheckInHandler) Scan(c *gin.Context) {
	var input ScanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	res, err := h.ledger.Consume(c.Request.Context(), input.Token, h.now(), model.MethodQR, middleware.CurrentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// Manual 人工登记，前台默认 manual，admin_override 只允许管理员使用
func (h *CheckInHandler) Manual(c *gin.Context) {
	var input ManualCheckInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	method := model.MethodManual
	if input.Method != "" {
		method = model.Method(input.Method)
	}
	if method == model.MethodAdminOverride && middleware.CurrentRole(c) < memberModel.RoleAdmin {
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, "admin_override requires admin role")
		return
	}

	res, err := h.ledger.CreateManual(c.Request.Context(), service.ManualInput{
		UserID:       input.UserID,
		MembershipID: input.MembershipID,
		Notes:        input.Notes,
		Method:       method,
		StaffID:      middleware.CurrentUserID(c),
	}, h.now())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// MyVisits 当前会员的入场记录
func (h *CheckInHandler) MyVisits(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	p.GetPageOffset()

	visits, total, err := h.ledger.ListVisitsByUser(c.Request.Context(), middleware.CurrentUserID(c), p.Page, p.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, utils.NewPageResult(visits, total, p))
}

// MembershipVisits 前台查看会员卡的入场记录
func (h *CheckInHandler) MembershipVisits(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	p.GetPageOffset()

	visits, total, err := h.ledger.ListVisitsByMembership(c.Request.Context(), c.Param("id"), p.Page, p.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, utils.NewPageResult(visits, total, p))
}

// handleError 入场相关的拒绝都是预期内的业务结果，HTTP 200 加业务码和原因返回
func (h *CheckInHandler) handleError(c *gin.Context, err error) {
	var notEntitled *entitlement.NotEntitledError
	switch {
	case errors.As(err, &notEntitled):
		response.FailWithReason(c, response.ErrNotEntitled, "Membership is not entitled to check in", string(notEntitled.Reason))
	case errors.Is(err, service.ErrTokenInvalid):
		response.FailWithReason(c, response.ErrCheckInTokenInvalid, "Check-in code is invalid", service.ReasonInvalid)
	case errors.Is(err, service.ErrTokenExpired):
		response.FailWithReason(c, response.ErrCheckInTokenExpired, "Check-in code has expired", service.ReasonExpired)
	case errors.Is(err, service.ErrTokenAlreadyConsumed):
		response.FailWithReason(c, response.ErrCheckInTokenConsumed, "Already checked in with this code", service.ReasonAlreadyConsumed)
	case errors.Is(err, entitlement.ErrNoActiveMembership):
		response.Fail(c, response.ErrNoActiveMembership, "No active membership")
	case errors.Is(err, membershipRepo.ErrMembershipNotFound):
		response.Error(c, http.StatusNotFound, response.ErrMembershipNotFound, "Membership not found")
	case errors.Is(err, service.ErrInvalidMethod):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	default:
		logger.L().Error("check-in request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
