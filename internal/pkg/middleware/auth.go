package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fitclub/internal/domain/member/model"
	"fitclub/internal/domain/member/repository"
	"fitclub/pkg/response"
	"fitclub/pkg/utils"

	"github.com/gin-gonic/gin"
)

// 上下文中的身份信息键
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			c.Abort()
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			c.Abort()
			return
		}

		// 将 userID 和 role 存入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// AccountLoader 按 ID 读取账号当前的角色与状态
type AccountLoader func(ctx context.Context, id string) (*model.Member, error)

// RequireRole 角色权限中间件，要求当前角色不低于 minRole。
// load 不为空时以数据库中的角色为准，被降级或封禁的账号立即失去权限，不必等 JWT 过期。
func RequireRole(minRole int, load AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			response.Error(c, http.StatusUnauthorized, response.ErrNoPermission, "Unauthorized")
			c.Abort()
			return
		}

		roleInt, ok := role.(int)
		if !ok {
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Invalid role format")
			c.Abort()
			return
		}

		if load != nil {
			member, err := load(c.Request.Context(), CurrentUserID(c))
			switch {
			case errors.Is(err, repository.ErrMemberNotFound):
				response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Account no longer exists")
				c.Abort()
				return
			case err != nil:
				response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Failed to load account")
				c.Abort()
				return
			case member.Status == model.StatusBanned:
				response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Account is banned")
				c.Abort()
				return
			}
			roleInt = member.Role
			c.Set(ContextRole, roleInt)
		}

		if roleInt < minRole {
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Insufficient permission")
			c.Abort()
			return
		}

		c.Next()
	}
}

// StaffMiddleware 前台工作人员权限中间件
func StaffMiddleware(load AccountLoader) gin.HandlerFunc {
	return RequireRole(model.RoleStaff, load)
}

// AdminMiddleware 管理员权限中间件
func AdminMiddleware(load AccountLoader) gin.HandlerFunc {
	return RequireRole(model.RoleAdmin, load)
}

// CurrentUserID 读取当前登录用户 ID
func CurrentUserID(c *gin.Context) string {
	val, _ := c.Get(ContextUserID)
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// CurrentRole 读取当前登录用户角色
func CurrentRole(c *gin.Context) int {
	val, _ := c.Get(ContextRole)
	if role, ok := val.(int); ok {
		return role
	}
	return 0
}
