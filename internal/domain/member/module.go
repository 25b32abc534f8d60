package member

import (
	"context"
	"fitclub/internal/domain/member/handler"
	"fitclub/internal/domain/member/repository"
	"fitclub/internal/domain/member/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/registry"
	"fitclub/internal/pkg/telegram"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// MemberModule 会员账号模块
type MemberModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&MemberModule{})
}

func (m *MemberModule) Name() string {
	return "member"
}

func (m *MemberModule) Priority() int {
	// 其他模块的权限校验依赖这里签发的 JWT
	return 1
}

func (m *MemberModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	memberRepo := repository.NewMemberRepository(ctx.DB)
	verifier := telegram.NewVerifier(ctx.Config.Telegram.BotToken, ctx.Config.Telegram.MaxAuthAge)
	memberService := service.NewMemberService(memberRepo, verifier)
	memberHandler := handler.NewMemberHandler(memberService)

	// 2. 路由注册
	setupRoutes(ctx.Router, memberHandler, memberRepo.GetByID)

	ctx.AddJob("login-limiter-cleanup", func(c context.Context) error {
		return loginLimiter.RunCleanup(c, 10*time.Minute, time.Hour)
	})

	return nil
}

// 登录接口单独限流：每秒 2 次，突发 5 次
var loginLimiter = middleware.NewIPRateLimiter(rate.Limit(2), 5)

func setupRoutes(r *gin.Engine, h *handler.MemberHandler, accounts middleware.AccountLoader) {
	// 公开路由
	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitWith(loginLimiter))
	{
		authGroup.POST("/telegram", h.LoginWithTelegram)
	}

	// 受保护的路由
	memberGroup := r.Group("/members")
	memberGroup.Use(middleware.AuthMiddleware())
	{
		memberGroup.GET("/me", h.GetMe)

		admin := memberGroup.Group("")
		admin.Use(middleware.AdminMiddleware(accounts))
		{
			admin.GET("", h.GetMembers)
			admin.PUT("/:id/role", h.UpdateRole)
		}
	}
}
