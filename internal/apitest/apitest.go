// Package apitest 启动完整的 HTTP 服务供客户端测试使用
// 数据库为内存 SQLite，Redis 为 miniredis，模型调用可以替换
package apitest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"casebook-server/internal/cache"
	"casebook-server/internal/config"
	"casebook-server/internal/dbtest"
	"casebook-server/internal/draft"
	"casebook-server/internal/handler"
	"casebook-server/internal/llm"
	"casebook-server/internal/middleware"
	"casebook-server/internal/repository"
	"casebook-server/internal/service"
	"casebook-server/internal/wechat"
	"casebook-server/pkg/jwt"
)

// TestCodePrefix 测试登录码前缀，test_<x> 对应 openid test_openid_<x>
const TestCodePrefix = "test_"

// Completer 可以在测试中修改返回值的模型替身
type Completer struct {
	mu    sync.Mutex
	reply string
	err   error
}

// Set 设置下一次调用的返回值
func (c *Completer) Set(reply string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply, c.err = reply, err
}

// Complete 实现 service.Completer
func (c *Completer) Complete(context.Context, []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply, c.err
}

// Server 运行中的测试服务
type Server struct {
	URL       string
	Completer *Completer
}

// New 启动测试服务，测试结束时自动关闭
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	completer := &Completer{reply: "建议完善检查后复诊。"}
	jwtService := jwt.NewJWTService("apitest-secret", time.Hour, "casebook")
	userRepo := repository.NewUserRepository(db)
	wx := wechat.NewClient(config.WeChatConfig{TestCodePrefix: TestCodePrefix})

	authService := service.NewAuthService(userRepo, wx, rc, jwtService)
	caseService := service.NewCaseService(repository.NewCaseRepository(db))
	draftService := service.NewDraftService(func(userID int64) draft.Slot {
		return rc.DraftSlot(userID, time.Hour)
	}, caseService)
	chatService := service.NewChatService(repository.NewChatRepository(db), completer, 10)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware())
	handler.RegisterRoutes(router, &handler.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		User:  handler.NewUserHandler(service.NewUserService(userRepo)),
		Case:  handler.NewCaseHandler(caseService, draftService),
		Chat:  handler.NewChatHandler(chatService),
		Draft: handler.NewDraftHandler(draftService),
	}, middleware.AuthMiddleware(authService))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Server{URL: srv.URL, Completer: completer}
}
