package registry

import (
	"context"
	"fitclub/internal/pkg/config"
	"fitclub/pkg/cache"
	"fitclub/pkg/metrics"
	"fmt"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Job 随服务一起运行的后台任务，ctx 取消时应返回
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    cache.CacheService
	Router   *gin.Engine
	Config   config.Config
	Metrics  *metrics.MetricsCollector
	Location *time.Location   // 俱乐部时区
	Now      func() time.Time // 统一时钟，测试中可替换

	jobs []Job
}

// AddJob 注册后台任务，由 cmd/server 统一启动和停止
func (c *ModuleContext) AddJob(name string, run func(ctx context.Context) error) {
	c.jobs = append(c.jobs, Job{Name: name, Run: run})
}

// Jobs 返回已注册的后台任务
func (c *ModuleContext) Jobs() []Job {
	return c.jobs
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块，重名时后注册的覆盖先注册的
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// sortedModules 按优先级排序，优先级相同时按名称排序保证顺序稳定
func sortedModules() []Module {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	if ctx.Now == nil {
		ctx.Now = time.Now
	}
	if ctx.Location == nil {
		ctx.Location = time.UTC
	}

	for _, module := range sortedModules() {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}
	return nil
}
