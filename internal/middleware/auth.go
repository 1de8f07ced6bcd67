// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录等
package middleware

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casebook-server/internal/service"
	"casebook-server/pkg/jwt"
	"casebook-server/pkg/response"
)

// 上下文中保存的认证信息
const (
	ContextUserID   = "user_id"
	ContextToken    = "token"
	ContextTokenExp = "token_exp"
)

// TokenVerifier 校验 Token 并返回其中的声明
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwt.UserClaims, error)
}

// AuthMiddleware 创建 JWT 认证中间件
// 验证请求头中的 Bearer Token，并将用户信息存入上下文
// 参数:
//   - verifier: Token 校验器，负责签名、过期和黑名单检查
//
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 格式: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "未授权")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "认证格式错误")
			c.Abort()
			return
		}
		tokenString := strings.TrimSpace(parts[1])

		claims, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				response.Unauthorized(c, "登录已过期，请重新登录")
			case errors.Is(err, jwt.ErrInvalidToken):
				response.Unauthorized(c, "Token 无效")
			case errors.Is(err, service.ErrUnauthorized):
				response.Unauthorized(c, "Token 已失效，请重新登录")
			default:
				log.Printf("[ERROR] Token 校验失败: %v", err)
				response.InternalError(c, "服务器内部错误", err)
			}
			c.Abort()
			return
		}

		// 后续的 Handler 通过 GetUserID 获取
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextToken, tokenString)
		var exp time.Time
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		c.Set(ContextTokenExp, exp)

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
// 返回:
//   - int64: 用户 ID，如果未认证返回 0
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return 0
	}
	id, _ := userID.(int64)
	return id
}

// GetToken 从上下文获取原始 Token 及其过期时间，用于登出
func GetToken(c *gin.Context) (string, time.Time) {
	token := c.GetString(ContextToken)
	exp, _ := c.Get(ContextTokenExp)
	expireAt, _ := exp.(time.Time)
	return token, expireAt
}
