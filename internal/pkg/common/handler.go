package handler

import (
	"context"
	"fitclub/pkg/logger"
	"fitclub/pkg/response"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Checker 依赖探活，返回 nil 表示健康
type Checker func(ctx context.Context) error

// HealthHandler 并发探测所有依赖
type HealthHandler struct {
	checks  map[string]Checker
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: timeout}
}

// HealthStatus 探活结果
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health 任一依赖失败时返回 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			errs[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{Status: "ok", Components: make(map[string]string, len(names))}
	for i, name := range names {
		if errs[i] != nil {
			status.Status = "degraded"
			status.Components[name] = errs[i].Error()
			logger.L().Warn("health check failed", zap.String("component", name), zap.Error(errs[i]))
			continue
		}
		status.Components[name] = "ok"
	}

	if status.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    response.ErrServerInternal,
			Message: "service degraded",
			Data:    status,
		})
		return
	}
	response.Success(c, status)
}
