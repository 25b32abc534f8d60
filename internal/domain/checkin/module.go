package checkin

import (
	"context"
	"fitclub/internal/domain/checkin/handler"
	"fitclub/internal/domain/checkin/repository"
	"fitclub/internal/domain/checkin/service"
	memberRepo "fitclub/internal/domain/member/repository"
	membershipRepo "fitclub/internal/domain/membership/repository"
	membershipService "fitclub/internal/domain/membership/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/registry"
	"fitclub/internal/pkg/worker"
	"fitclub/pkg/metrics"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CheckInModule 入场模块
type CheckInModule struct{}

func init() {
	registry.Register(&CheckInModule{})
}

func (m *CheckInModule) Name() string {
	return "checkin"
}

func (m *CheckInModule) Priority() int {
	// 依赖会员卡模块的缓存键约定
	return 20
}

func (m *CheckInModule) Init(ctx *registry.ModuleContext) error {
	collector := ctx.Metrics
	if collector == nil {
		collector = metrics.GetGlobalCollector()
	}
	cfg := ctx.Config.CheckIn

	// 1. 依赖注入
	repo := repository.NewCheckInRepository(ctx.DB)
	// 入场成功后通过会员卡服务清理共享缓存
	msService := membershipService.NewMembershipService(membershipRepo.NewMembershipRepository(ctx.DB), ctx.Cache, ctx.Location)
	tokenService := service.NewTokenService(repo, service.TokenOptions{
		TTL:             cfg.TokenTTL,
		RefreshCooldown: cfg.RefreshCooldown,
	}, collector)
	ledger := service.NewLedger(repo, msService, collector)

	handler.RegisterValidators()
	h := handler.NewCheckInHandler(tokenService, ledger, ctx.Now)

	// 2. 路由注册
	setupRoutes(ctx.Router, h, memberRepo.NewMemberRepository(ctx.DB).GetByID)

	// 3. 后台清理过期入场码
	sweeper := worker.NewSweeper(repo, collector, cfg.SweepInterval, cfg.SweepRetention)
	ctx.AddJob("checkin-token-sweeper", sweeper.Run)
	ctx.AddJob("scan-limiter-cleanup", func(c context.Context) error {
		return scanLimiter.RunCleanup(c, 10*time.Minute, time.Hour)
	})

	return nil
}

// 扫码接口按设备限流：每秒 5 次，突发 10 次
var scanLimiter = middleware.NewIPRateLimiter(rate.Limit(5), 10)

func setupRoutes(r *gin.Engine, h *handler.CheckInHandler, accounts middleware.AccountLoader) {
	g := r.Group("/checkins")
	g.Use(middleware.AuthMiddleware())
	{
		// 会员申请入场码
		g.POST("/token", h.IssueToken)
		g.GET("/token/qr", h.TokenQR)

		staff := g.Group("")
		staff.Use(middleware.StaffMiddleware(accounts))
		{
			staff.GET("/peek", h.Peek)
			staff.POST("/scan", middleware.RateLimitWith(scanLimiter), h.Scan)
			staff.POST("/manual", h.Manual)
		}
	}

	visits := r.Group("/visits")
	visits.Use(middleware.AuthMiddleware())
	{
		visits.GET("/me", h.MyVisits)
	}

	membershipVisits := r.Group("/memberships")
	membershipVisits.Use(middleware.AuthMiddleware(), middleware.StaffMiddleware(accounts))
	{
		membershipVisits.GET("/:id/visits", h.MembershipVisits)
	}
}
