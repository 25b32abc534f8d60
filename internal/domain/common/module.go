package common

import (
	"context"
	commonHandler "fitclub/internal/pkg/common"
	"fitclub/internal/pkg/registry"
	"time"
)

// CommonModule 通用路由
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	checks := map[string]commonHandler.Checker{}
	if ctx.DB != nil {
		checks["postgres"] = func(c context.Context) error {
			sqlDB, err := ctx.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c)
		}
	}
	if ctx.Redis != nil {
		checks["redis"] = func(c context.Context) error {
			return ctx.Redis.Ping(c).Err()
		}
	}

	h := commonHandler.NewHealthHandler(2*time.Second, checks)
	ctx.Router.GET("/health", h.Health)
	return nil
}
