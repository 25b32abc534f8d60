package handler

import (
	"context"
	"errors"
	"fitclub/internal/domain/member/model"
	"fitclub/internal/domain/membership/entitlement"
	membershipModel "fitclub/internal/domain/membership/model"
	"fitclub/internal/domain/membership/repository"
	"fitclub/internal/domain/membership/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/pkg/response"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// MembershipHandler 会员卡处理器
type MembershipHandler struct {
	service service.MembershipService
	loc     *time.Location
	now     func() time.Time
}

// NewMembershipHandler 创建处理器，loc 用于解析日期
func NewMembershipHandler(service service.MembershipService, loc *time.Location, now func() time.Time) *MembershipHandler {
	return &MembershipHandler{service: service, loc: loc, now: now}
}

// CreateMembershipInput 开卡输入，日期格式 2006-01-02，两端都包含
type CreateMembershipInput struct {
	UserID    string `json:"userId" binding:"required,uuid"`
	TariffID  string `json:"tariffId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	MaxVisits *int   `json:"maxVisits" binding:"omitempty,min=0"`
}

// MembershipView 会员卡记录加上实时计算的状态
type MembershipView struct {
	*membershipModel.Membership
	Summary entitlement.Summary `json:"summary"`
}

func (h *MembershipHandler) view(m *membershipModel.Membership, now time.Time) MembershipView {
	return MembershipView{Membership: m, Summary: entitlement.Summarize(m, now)}
}

// Create 管理员在支付确认后开卡
func (h *MembershipHandler) Create(c *gin.Context) {
	var input CreateMembershipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	start, err := time.ParseInLocation(dateLayout, input.StartDate, h.loc)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "startDate must be YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation(dateLayout, input.EndDate, h.loc)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "endDate must be YYYY-MM-DD")
		return
	}

	m, err := h.service.Create(c.Request.Context(), service.CreateInput{
		UserID:    input.UserID,
		TariffID:  input.TariffID,
		PaymentID: input.PaymentID,
		StartDate: start,
		EndDate:   end,
		MaxVisits: input.MaxVisits,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, h.view(m, h.now()))
}

// GetActive 当前会员用于入场的会员卡
func (h *MembershipHandler) GetActive(c *gin.Context) {
	now := h.now()
	m, err := h.service.GetActive(c.Request.Context(), middleware.CurrentUserID(c), now)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, h.view(m, now))
}

// GetMembership 查看单张会员卡，普通会员只能查看自己的
func (h *MembershipHandler) GetMembership(c *gin.Context) {
	m, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if middleware.CurrentRole(c) < model.RoleStaff && m.UserID != middleware.CurrentUserID(c) {
		response.Error(c, http.StatusNotFound, response.ErrMembershipNotFound, "Membership not found")
		return
	}
	response.Success(c, h.view(m, h.now()))
}

// ListMine 当前会员的全部会员卡
func (h *MembershipHandler) ListMine(c *gin.Context) {
	h.list(c, middleware.CurrentUserID(c))
}

// ListByMember 前台查看指定会员的会员卡
func (h *MembershipHandler) ListByMember(c *gin.Context) {
	h.list(c, c.Param("id"))
}

func (h *MembershipHandler) list(c *gin.Context, userID string) {
	list, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	now := h.now()
	views := make([]MembershipView, 0, len(list))
	for i := range list {
		views = append(views, h.view(&list[i], now))
	}
	response.Success(c, views)
}

// Freeze 冻结
func (h *MembershipHandler) Freeze(c *gin.Context) {
	h.transition(c, h.service.Freeze)
}

// Unfreeze 解冻
func (h *MembershipHandler) Unfreeze(c *gin.Context) {
	h.transition(c, h.service.Unfreeze)
}

// Cancel 注销
func (h *MembershipHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *MembershipHandler) transition(c *gin.Context, fn func(ctx context.Context, id string) (*membershipModel.Membership, error)) {
	m, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, h.view(m, h.now()))
}

func (h *MembershipHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrMembershipNotFound):
		response.Error(c, http.StatusNotFound, response.ErrMembershipNotFound, "Membership not found")
	case errors.Is(err, repository.ErrDuplicatePayment):
		response.Error(c, http.StatusConflict, response.ErrMembershipInvalidState, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, response.ErrMembershipInvalidState, err.Error())
	case errors.Is(err, service.ErrInvalidPeriod), errors.Is(err, service.ErrInvalidQuota):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, entitlement.ErrNoActiveMembership):
		response.Fail(c, response.ErrNoActiveMembership, "No active membership")
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
	}
}
