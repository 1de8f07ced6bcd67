package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers 全部请求处理器
type Handlers struct {
	Auth  *AuthHandler
	User  *UserHandler
	Case  *CaseHandler
	Chat  *ChatHandler
	Draft *DraftHandler
}

// RegisterRoutes 注册所有路由
// 参数:
//   - router: Gin 引擎
//   - h: 请求处理器
//   - auth: 认证中间件
func RegisterRoutes(router *gin.Engine, h *Handlers, auth gin.HandlerFunc) {
	api := router.Group("/api")

	api.GET("/health", Health)

	// 登录无需认证
	api.POST("/user/login", h.Auth.Login)

	user := api.Group("/user", auth)
	{
		user.POST("/logout", h.Auth.Logout)
		user.GET("/profile", h.User.GetProfile)
		user.PUT("/profile", h.User.UpdateProfile)
	}

	cases := api.Group("/cases", auth)
	{
		cases.POST("", h.Case.CreateCase)
		cases.GET("", h.Case.ListCases)
		cases.GET("/:id", h.Case.GetCase)
		cases.DELETE("/:id", h.Case.DeleteCase)
		cases.POST("/:id/draft", h.Case.EditCase)
	}

	drafts := api.Group("/drafts", auth)
	{
		drafts.GET("", h.Draft.GetDraft)
		drafts.DELETE("", h.Draft.Reset)
		drafts.GET("/validation", h.Draft.Validate)
		drafts.POST("/steps", h.Draft.MarkStep)
		drafts.POST("/submit", h.Draft.Submit)
		drafts.PATCH("/:section", h.Draft.UpdateSection)
	}

	chat := api.Group("/chat", auth)
	{
		chat.POST("/message", h.Chat.SendMessage)
		chat.GET("/sessions", h.Chat.ListSessions)
		chat.GET("/sessions/:id/messages", h.Chat.ListMessages)
		chat.DELETE("/sessions/:id", h.Chat.DeleteSession)
	}
}
