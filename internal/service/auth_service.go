package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"casebook-server/internal/model"
	"casebook-server/internal/repository"
	"casebook-server/internal/wechat"
	"casebook-server/pkg/jwt"
	"casebook-server/pkg/util"
)

// SessionExchanger 用登录码换取 openid
type SessionExchanger interface {
	Code2Session(ctx context.Context, code string) (*wechat.Session, error)
}

// TokenBlacklist Token 黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenHash string) (bool, error)
}

// AuthService 认证服务
// 处理微信登录、Token 校验和登出
type AuthService struct {
	userRepo   *repository.UserRepository // 用户数据访问层
	wechat     SessionExchanger           // 微信登录凭证校验
	blacklist  TokenBlacklist             // Token 黑名单
	jwtService *jwt.JWTService            // JWT 服务
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	userRepo *repository.UserRepository,
	wechat SessionExchanger,
	blacklist TokenBlacklist,
	jwtService *jwt.JWTService,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		wechat:     wechat,
		blacklist:  blacklist,
		jwtService: jwtService,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Code     string       `json:"code"`     // wx.login 返回的登录码
	UserInfo *ProfileHint `json:"userInfo"` // 小程序获取到的用户资料，可选
}

// ProfileHint 小程序端提供的用户资料
type ProfileHint struct {
	NickName  string `json:"nickName"`
	AvatarURL string `json:"avatarUrl"`
}

// LoginResponse 登录结果
type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Login 微信登录
// 首次登录时创建用户；再次登录时刷新头像，昵称只在仍是占位昵称时才更新
// 参数:
//   - ctx: 上下文
//   - req: 登录请求
//
// 返回:
//   - *LoginResponse: Token 与用户信息
//   - error: *ValidationError、*UpstreamError 或数据库错误
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, invalid("缺少登录code")
	}

	session, err := s.wechat.Code2Session(ctx, code)
	if err != nil {
		if errors.Is(err, wechat.ErrEmptyCode) {
			return nil, invalid("缺少登录code")
		}
		return nil, &UpstreamError{Service: "wechat", Err: err}
	}

	hint := ProfileHint{}
	if req.UserInfo != nil {
		hint = *req.UserInfo
	}

	user, err := s.upsertUser(ctx, session.OpenID, hint)
	if err != nil {
		return nil, err
	}

	token, expireAt, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: expireAt, User: user}, nil
}

// upsertUser 查找或创建用户，并按规则刷新资料
func (s *AuthService) upsertUser(ctx context.Context, openID string, hint ProfileHint) (*model.User, error) {
	user, err := s.userRepo.GetByOpenID(ctx, openID)
	if err != nil {
		return nil, err
	}

	nickName := strings.TrimSpace(hint.NickName)
	if user == nil {
		user = &model.User{
			OpenID:    openID,
			Name:      model.DefaultUserName,
			AvatarURL: hint.AvatarURL,
		}
		if nickName != "" {
			user.Name = nickName
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			// 并发首次登录时另一个请求可能已经创建了用户
			existing, getErr := s.userRepo.GetByOpenID(ctx, openID)
			if getErr != nil || existing == nil {
				return nil, err
			}
			return existing, nil
		}
		log.Printf("[INFO] 新用户注册: id=%d", user.ID)
		return user, nil
	}

	fields := make(map[string]interface{})
	if hint.AvatarURL != "" && hint.AvatarURL != user.AvatarURL {
		fields["avatar_url"] = hint.AvatarURL
		user.AvatarURL = hint.AvatarURL
	}
	if !user.HasCustomName() && nickName != "" && nickName != model.DefaultUserName {
		fields["name"] = nickName
		user.Name = nickName
	}
	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, user.ID, fields); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Verify 校验 Token，返回其中的声明
// 签名错误、过期或已登出的 Token 都返回错误
func (s *AuthService) Verify(ctx context.Context, token string) (*jwt.UserClaims, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, util.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("check token blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Logout 登出，把 Token 加入黑名单直到它原本的过期时间
// 参数:
//   - ctx: 上下文
//   - token: 原始 Token
//   - expireAt: Token 的过期时间
//
// 返回:
//   - error: Redis 操作错误
func (s *AuthService) Logout(ctx context.Context, token string, expireAt time.Time) error {
	return s.blacklist.BlacklistToken(ctx, util.HashToken(token), expireAt)
}
