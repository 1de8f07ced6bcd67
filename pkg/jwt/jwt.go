// Package jwt 提供会话 Token 的签发和验证
// Token 使用 HS256 签名，subject 为内部用户 ID
package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 定义错误类型
var (
	ErrInvalidToken = errors.New("invalid token")    // Token 无效
	ErrExpiredToken = errors.New("token has expired") // Token 已过期
)

// DefaultExpire 默认有效期 7 天
const DefaultExpire = 7 * 24 * time.Hour

// UserClaims 用户 Token 的声明
type UserClaims struct {
	UserID int64 `json:"userId"` // 用户 ID
	jwt.RegisteredClaims
}

// JWTService 提供 Token 相关操作
type JWTService struct {
	secret []byte        // 签名密钥
	expire time.Duration // 有效期
	issuer string        // 签发者
}

// NewJWTService 创建 JWTService 实例
// 参数:
//   - secret: 签名密钥
//   - expire: 有效期，<= 0 时使用 7 天
//   - issuer: 签发者标识
//
// 返回:
//   - *JWTService: JWT 服务实例
func NewJWTService(secret string, expire time.Duration, issuer string) *JWTService {
	if expire <= 0 {
		expire = DefaultExpire
	}
	return &JWTService{
		secret: []byte(secret),
		expire: expire,
		issuer: issuer,
	}
}

// GenerateToken 为用户签发 Token
// 参数:
//   - userID: 用户 ID
//
// 返回:
//   - string: Token 字符串
//   - time.Time: 过期时间
//   - error: 签名错误
func (s *JWTService) GenerateToken(userID int64) (string, time.Time, error) {
	now := time.Now()
	expireAt := now.Add(s.expire)

	claims := UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expireAt, nil
}

// ValidateToken 验证 Token 并返回声明
// 参数:
//   - tokenString: Token 字符串
//
// 返回:
//   - *UserClaims: 声明信息
//   - error: ErrExpiredToken 或 ErrInvalidToken
func (s *JWTService) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名，防止算法替换
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// subject 与 userId 必须一致
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Expire 返回 Token 有效期
func (s *JWTService) Expire() time.Duration {
	return s.expire
}
