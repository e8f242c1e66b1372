// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"agrichat-web/pkg/log"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxLoggedBody = 4 << 10

// RequestLogger 是一个 Gin 中间件，记录每个请求的状态码、耗时和来源。
// 只记录 JSON 请求体，multipart 上传和表单不会被读取到日志中。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 将读取的请求体重新设置回 c.Request.Body，以便后续处理函数可以正常读取
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			if len(requestBody) > maxLoggedBody {
				requestBody = requestBody[:maxLoggedBody]
			}
		}

		// 处理请求
		c.Next()

		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if len(requestBody) > 0 {
			fields = append(fields, "requestBody", string(requestBody))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
