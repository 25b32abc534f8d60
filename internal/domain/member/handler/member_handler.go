package handler

import (
	"encoding/json"
	"errors"
	"fitclub/internal/domain/member/repository"
	"fitclub/internal/domain/member/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/telegram"
	"fitclub/pkg/response"
	"fitclub/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MemberHandler 会员账号处理器
type MemberHandler struct {
	service service.MemberService
}

// NewMemberHandler 创建处理器
func NewMemberHandler(service service.MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

// TelegramLoginInput 登录输入：WebApp 的 initData 原始查询串，或登录组件回调的 JSON
type TelegramLoginInput struct {
	InitData string          `json:"initData"`
	Payload  json.RawMessage `json:"payload"`
}

// UpdateRoleInput 修改角色输入
type UpdateRoleInput struct {
	Role int `json:"role" binding:"required,min=1,max=3"`
}

// LoginWithTelegram 校验 Telegram 签名后登录或注册
func (h *MemberHandler) LoginWithTelegram(c *gin.Context) {
	var input TelegramLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	var fields map[string]string
	var err error
	switch {
	case input.InitData != "":
		fields, err = telegram.FieldsFromQuery(input.InitData)
	case len(input.Payload) > 0:
		fields, err = telegram.FieldsFromJSON(input.Payload)
	default:
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "initData or payload is required")
		return
	}
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.LoginWithTelegram(c.Request.Context(), fields)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMemberBanned):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Account is banned")
		case errors.Is(err, telegram.ErrMissingHash),
			errors.Is(err, telegram.ErrInvalidSignature),
			errors.Is(err, telegram.ErrAuthDateExpired),
			errors.Is(err, telegram.ErrMissingUser):
			response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Login failed")
		}
		return
	}

	response.Success(c, result)
}

// GetMe 当前登录会员信息
func (h *MemberHandler) GetMe(c *gin.Context) {
	member, err := h.service.GetMember(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	response.Success(c, member)
}

// GetMembers 分页获取会员列表
func (h *MemberHandler) GetMembers(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	p.GetPageOffset()

	members, total, err := h.service.GetMembers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Failed to fetch members")
		return
	}

	response.Success(c, utils.NewPageResult(members, total, p))
}

// UpdateRole 管理员修改会员角色
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	var input UpdateRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.UpdateRole(c.Request.Context(), c.Param("id"), input.Role); err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
		h.handleLookupError(c, err)
		return
	}

	response.Success(c, "Role updated successfully")
}

func (h *MemberHandler) handleLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrMemberNotFound) {
		response.Error(c, http.StatusNotFound, response.ErrMemberNotFound, "Member not found")
		return
	}
	response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
}
