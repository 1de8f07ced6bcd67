package handler

import (
	"github.com/gin-gonic/gin"

	"casebook-server/internal/middleware"
	"casebook-server/internal/model"
	"casebook-server/internal/service"
	"casebook-server/pkg/response"
)

// AuthHandler 认证请求处理器
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login 微信登录
// @Summary 微信小程序登录
// @Description 用 wx.login 返回的 code 换取 Token，首次登录自动注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "登录码和可选的用户资料"
// @Success 200 {object} map[string]interface{} "success, token, userInfo"
// @Router /api/user/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "微信登录失败")
		return
	}

	response.Success(c, gin.H{
		"token":    resp.Token,
		"userInfo": loginUserInfo(resp.User),
	})
}

// Logout 登出
// @Summary 登出
// @Description 将当前 Token 加入黑名单
// @Tags 认证
// @Security Bearer
// @Produce json
// @Router /api/user/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, expireAt := middleware.GetToken(c)
	if token == "" {
		response.Unauthorized(c, "未授权")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token, expireAt); err != nil {
		respondError(c, err, "登出失败")
		return
	}

	response.SuccessWithMessage(c, "已登出", nil)
}

// loginUserInfo 登录接口只返回公开字段
func loginUserInfo(u *model.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"openid":    u.OpenID,
		"name":      u.Name,
		"avatarUrl": u.AvatarURL,
	}
}
