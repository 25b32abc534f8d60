package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextTraceID = "traceID"
	traceHeader    = "X-Trace-ID"
	maxTraceIDLen  = 64
)

// TraceMiddleware 透传或生成追踪 ID，前端和扫码终端可以带上自己的 ID
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceHeader)
		// 过长或含控制字符的外部 ID 直接丢弃，避免污染日志
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}

		c.Set(ContextTraceID, traceID)
		c.Header(traceHeader, traceID)

		c.Next()
	}
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
