package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fitclub/pkg/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 存储每个IP的限流器
type IPRateLimiter struct {
	ips map[string]*limiterEntry
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter 创建一个新的IP限流器
// r: 每秒允许的请求数 (QPS)
// b: 桶的大小 (Burst)
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*limiterEntry),
		r:   r,
		b:   b,
	}
}

// GetLimiter 获取指定IP的限流器
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, exists := i.ips[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// Cleanup 清理超过 idle 未访问的 IP
func (i *IPRateLimiter) Cleanup(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-idle)
	for ip, entry := range i.ips {
		if entry.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// RunCleanup 定期清理长期不活跃的 IP，阻塞直到 ctx 取消
func (i *IPRateLimiter) RunCleanup(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			i.Cleanup(idle)
		}
	}
}

// DefaultLimiter 全局限流器，供 cmd/server 调度清理
func DefaultLimiter() *IPRateLimiter {
	return limiter
}

// 默认限制：每秒 50 个请求，突发 100 个
var limiter = NewIPRateLimiter(50, 100)

// RateLimitMiddleware 全局限流中间件
func RateLimitMiddleware() gin.HandlerFunc {
	return RateLimitWith(limiter)
}

// RateLimitWith 使用指定限流器，扫码等敏感接口可以单独收紧
func RateLimitWith(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.GetLimiter(c.ClientIP()).Allow() {
			response.Error(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
