// Package middleware 提供 HTTP 请求的中间件
package middleware

import (
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casebook-server/pkg/response"
)

// LoggerMiddleware 创建请求日志中间件
// 记录每个请求的方法、路径、状态码、耗时和用户
// 请求体可能包含患者信息，不记录
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		statusCode := c.Writer.Status()
		logLine := formatLogLine(statusCode, time.Since(start), c.ClientIP(), c.Request.Method, path,
			GetUserID(c), c.Errors.ByType(gin.ErrorTypePrivate).String())

		switch {
		case statusCode >= 500:
			log.Printf("[ERROR] %s", logLine)
		case statusCode >= 400:
			log.Printf("[WARN] %s", logLine)
		default:
			log.Printf("[INFO] %s", logLine)
		}
	}
}

// formatLogLine 格式化日志行
func formatLogLine(statusCode int, latency time.Duration, clientIP, method, path string, userID int64, errorMessage string) string {
	var latencyStr string
	if latency < time.Millisecond {
		latencyStr = latency.String()
	} else if latency < time.Second {
		latencyStr = latency.Truncate(time.Microsecond).String()
	} else {
		latencyStr = latency.Truncate(time.Millisecond).String()
	}

	logLine := fmt.Sprintf("%s | %-12s | %-15s | %-7s | %s",
		statusLabel(statusCode), latencyStr, clientIP, method, path)
	if userID != 0 {
		logLine += fmt.Sprintf(" | user=%d", userID)
	}

	if errorMessage != "" {
		logLine += " | " + errorMessage
	}

	return logLine
}

// statusLabel 状态码加上分类标记
func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return fmt.Sprintf("[%d OK]", code)
	case code >= 300 && code < 400:
		return fmt.Sprintf("[%d REDIRECT]", code)
	case code >= 400 && code < 500:
		return fmt.Sprintf("[%d CLIENT_ERR]", code)
	default:
		return fmt.Sprintf("[%d SERVER_ERR]", code)
	}
}

// RecoveryMiddleware 创建 panic 恢复中间件
// 捕获处理器中的 panic，返回统一的 500 响应
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ERROR] panic: %v\n%s", r, strings.TrimSpace(string(debug.Stack())))
				if !c.Writer.Written() {
					response.InternalError(c, "服务器内部错误", fmt.Errorf("panic: %v", r))
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
