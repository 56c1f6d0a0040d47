// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"docflow-go/pkg/log"
)

// RequestLogger 是一个 Gin 中间件，用于记录结构化的请求日志。
// 文件上传接口的请求体可能很大，因此只记录请求行级别的信息。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"responseSize", c.Writer.Size(),
		)
	}
}
