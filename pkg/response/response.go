// Package response 提供统一的 HTTP 响应格式
// 成功: {"success": true, ...业务字段}
// 失败: {"success": false, "message": "..."}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success 返回成功响应
// 参数:
//   - c: Gin 上下文
//   - fields: 与 success 平级输出的业务字段，可以为 nil
func Success(c *gin.Context, fields gin.H) {
	c.JSON(http.StatusOK, build(true, "", fields))
}

// SuccessWithMessage 返回成功响应（带提示信息）
func SuccessWithMessage(c *gin.Context, message string, fields gin.H) {
	c.JSON(http.StatusOK, build(true, message, fields))
}

// Error 返回错误响应
// 参数:
//   - c: Gin 上下文
//   - httpCode: HTTP 状态码
//   - message: 错误信息
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, build(false, message, nil))
}

// BadRequest 返回 400 错误（请求参数错误）
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// ValidationFailed 返回 400 错误，并附带全部校验问题
func ValidationFailed(c *gin.Context, message string, problems []string) {
	c.JSON(http.StatusBadRequest, build(false, message, gin.H{"errors": problems}))
}

// Unauthorized 返回 401 错误（未授权）
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound 返回 404 错误（资源不存在）
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 返回 500 错误
// 只有在 debug 模式下才把内部错误详情返回给客户端
func InternalError(c *gin.Context, message string, err error) {
	var fields gin.H
	if err != nil && gin.IsDebugging() {
		fields = gin.H{"error": err.Error()}
	}
	c.JSON(http.StatusInternalServerError, build(false, message, fields))
}

func build(success bool, message string, fields gin.H) gin.H {
	body := gin.H{"success": success}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	return body
}
