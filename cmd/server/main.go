package main

import (
	"context"
	"errors"
	"fitclub/internal/pkg/config"
	"fitclub/internal/pkg/middleware"
	"fitclub/internal/pkg/registry"
	"fitclub/pkg/cache"
	"fitclub/pkg/database"
	"fitclub/pkg/logger"
	"fitclub/pkg/metrics"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// 模块通过 init 自动注册
	_ "fitclub/internal/domain/checkin"
	_ "fitclub/internal/domain/common"
	_ "fitclub/internal/domain/member"
	_ "fitclub/internal/domain/membership"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	// 2. 基础设施
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewMetricsCollector(reg)

	// 3. 路由与中间件
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(collector),
		middleware.SecurityHeadersMiddleware(),
		cors.New(corsConfig(cfg.CORS)),
		middleware.RateLimitMiddleware(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// 4. 模块初始化
	moduleCtx := &registry.ModuleContext{
		DB:       db,
		Redis:    rdb,
		Cache:    cache.NewRedisCache(rdb, "fitclub:"+cfg.App.Env+":"),
		Router:   r,
		Config:   cfg,
		Metrics:  collector,
		Location: loc,
		Now:      time.Now,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		return err
	}
	moduleCtx.AddJob("db-pool-monitor", database.NewPoolMonitor(sqlDB, collector, 15*time.Second).Run)
	moduleCtx.AddJob("global-limiter-cleanup", func(c context.Context) error {
		return middleware.DefaultLimiter().RunCleanup(c, 10*time.Minute, time.Hour)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 5. HTTP 服务与后台任务共用一个生命周期，任一失败全部退出
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, job := range moduleCtx.Jobs() {
		g.Go(func() error {
			logger.L().Info("job started", zap.String("job", job.Name))
			if err := job.Run(gctx); err != nil {
				logger.L().Error("job failed", zap.String("job", job.Name), zap.Error(err))
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Trace-ID"},
		ExposeHeaders:    []string{"X-Trace-ID", "X-Token-Expires-At", "X-Token-Expires-In"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}
