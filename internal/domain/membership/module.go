package membership

import (
	memberRepo "fitclub/internal/domain/member/repository"
	"fitclub/internal/domain/membership/handler"
	"fitclub/internal/domain/membership/repository"
	"fitclub/internal/domain/membership/service"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// MembershipModule 会员卡模块
type MembershipModule struct{}

func init() {
	registry.Register(&MembershipModule{})
}

func (m *MembershipModule) Name() string {
	return "membership"
}

func (m *MembershipModule) Priority() int {
	return 10
}

func (m *MembershipModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	mRepo := repository.NewMembershipRepository(ctx.DB)
	mService := service.NewMembershipService(mRepo, ctx.Cache, ctx.Location)
	mHandler := handler.NewMembershipHandler(mService, ctx.Location, ctx.Now)

	// 2. 路由注册
	accounts := memberRepo.NewMemberRepository(ctx.DB).GetByID
	setupRoutes(ctx.Router, mHandler, accounts)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.MembershipHandler, accounts middleware.AccountLoader) {
	g := r.Group("/memberships")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("/active", h.GetActive)
		g.GET("/mine", h.ListMine)
		g.GET("/:id", h.GetMembership)

		// 开卡和状态变更需要管理员权限
		admin := g.Group("")
		admin.Use(middleware.AdminMiddleware(accounts))
		{
			admin.POST("", h.Create)
			admin.PUT("/:id/freeze", h.Freeze)
			admin.PUT("/:id/unfreeze", h.Unfreeze)
			admin.PUT("/:id/cancel", h.Cancel)
		}
	}

	// 前台查看会员名下的卡
	staff := r.Group("/members")
	staff.Use(middleware.AuthMiddleware(), middleware.StaffMiddleware(accounts))
	{
		staff.GET("/:id/memberships", h.ListByMember)
	}
}
