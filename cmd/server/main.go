// Package main 是服务端的入口点
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"casebook-server/internal/cache"
	"casebook-server/internal/config"
	"casebook-server/internal/database"
	"casebook-server/internal/draft"
	"casebook-server/internal/handler"
	"casebook-server/internal/llm"
	"casebook-server/internal/middleware"
	"casebook-server/internal/repository"
	"casebook-server/internal/service"
	"casebook-server/internal/wechat"
	"casebook-server/pkg/jwt"
)

func main() {
	configDir := flag.String("config", "./configs", "配置文件目录")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("[ERROR] Failed to load config: %v", err)
	}

	// 设置 Gin 模式，必须在创建引擎之前
	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("[ERROR] Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("[ERROR] Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Fatalf("[ERROR] Failed to init redis: %v", err)
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expire, cfg.JWT.Issuer)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, wechat.NewClient(cfg.WeChat), redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	caseService := service.NewCaseService(caseRepo)
	draftService := service.NewDraftService(func(userID int64) draft.Slot {
		return redisCache.DraftSlot(userID, cfg.Draft.TTL)
	}, caseService)
	chatService := service.NewChatService(chatRepo, llm.NewClient(cfg.AI), cfg.AI.ContextLimit)

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware())            // 恢复 panic
	router.Use(middleware.LoggerMiddleware())              // 请求日志
	router.Use(middleware.CORSMiddleware(cfg.Server.CORS)) // CORS

	// 注册路由
	handler.RegisterRoutes(router, &handler.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		User:  handler.NewUserHandler(userService),
		Case:  handler.NewCaseHandler(caseService, draftService),
		Chat:  handler.NewChatHandler(chatService),
		Draft: handler.NewDraftHandler(draftService),
	}, middleware.AuthMiddleware(authService))

	// 创建 HTTP 服务器
	// 写超时要大于模型调用的超时
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 10*time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("[INFO] Server starting on %s (db=%s, model=%s)", addr, cfg.Database.Driver, cfg.AI.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[ERROR] Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[INFO] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] Server forced to shutdown: %v", err)
	}

	if err := redisCache.Close(); err != nil {
		log.Printf("[WARN] Failed to close redis: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("[INFO] Server exited")
}
