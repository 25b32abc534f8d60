package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder 接收 HTTP 请求指标，*metrics.MetricsCollector 满足该接口
type RequestRecorder interface {
	RecordHTTPRequest(method, endpoint string, status int, duration time.Duration)
}

// MetricsMiddleware 按路由模板记录请求数和耗时，未匹配路由记为 unmatched，避免标签基数失控
func MetricsMiddleware(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		recorder.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// SecurityHeadersMiddleware 安全响应头
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}
