package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"casebook-server/pkg/response"
)

// Health 健康检查
// @Router /api/health [get]
func Health(c *gin.Context) {
	response.SuccessWithMessage(c, "服务正常运行", gin.H{
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
