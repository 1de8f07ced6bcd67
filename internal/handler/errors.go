// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"casebook-server/internal/middleware"
	"casebook-server/internal/service"
	"casebook-server/pkg/jwt"
	"casebook-server/pkg/response"
)

// respondError 把业务错误映射为 HTTP 响应
// 参数:
//   - c: Gin 上下文
//   - err: 业务错误
//   - fallback: 未知错误时返回给客户端的提示
func respondError(c *gin.Context, err error, fallback string) {
	var ve *service.ValidationError
	var ue *service.UpstreamError
	switch {
	case errors.As(err, &ve):
		if len(ve.Problems) == 1 {
			response.BadRequest(c, ve.Problems[0])
			return
		}
		response.ValidationFailed(c, ve.Problems[0], ve.Problems)
	case errors.As(err, &ue):
		log.Printf("[WARN] %s 调用失败: %v", ue.Service, ue.Err)
		response.BadRequest(c, fallback)
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrExpiredToken):
		response.Unauthorized(c, "未授权")
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCaseNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, err.Error())
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		response.InternalError(c, fallback, err)
	}
}

// currentUser 返回当前登录用户，未登录时写入 401 并返回 false
func currentUser(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "未授权")
		return 0, false
	}
	return userID, true
}

// pathID 解析路径中的数字 ID，格式错误时按资源不存在处理
func pathID(c *gin.Context, name string, notFound error) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.NotFound(c, notFound.Error())
		return 0, false
	}
	return id, true
}
