// Package main 是应用程序的入口点。
package main

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/handler"
	"agrichat-web/internal/middleware"
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/service"
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/chatapi"
	"agrichat-web/pkg/community"
	"agrichat-web/pkg/database"
	"agrichat-web/pkg/events"
	"agrichat-web/pkg/kafka"
	"agrichat-web/pkg/log"
	"agrichat-web/pkg/storage"
	"agrichat-web/pkg/token"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// repositories 汇总按存储驱动选择的状态存储实现。
type repositories struct {
	users    repository.UserRepository
	sessions repository.ChatSessionRepository
	views    repository.ChatViewRepository
	drafts   repository.DraftRepository
	store    session.Store
}

func newRepositories(cfg config.Config) repositories {
	if cfg.Storage.Driver == "memory" {
		log.Info("使用内存存储，数据不会持久化")
		return repositories{
			users:    repository.NewMemoryUserRepository(),
			sessions: repository.NewMemoryChatSessionRepository(),
			views:    repository.NewMemoryChatViewRepository(),
			drafts:   repository.NewMemoryDraftRepository(),
			store:    session.NewMemoryStore(),
		}
	}

	database.InitMySQL(cfg.Database.MySQL.DSN, &model.User{}, &model.ChatSession{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	return repositories{
		users:    repository.NewUserRepository(database.DB),
		sessions: repository.NewChatSessionRepository(database.DB),
		views:    repository.NewChatViewRepository(database.RDB, cfg.Chat.ViewTTL()),
		drafts:   repository.NewDraftRepository(database.RDB, cfg.Storage.StateTTL()),
		store:    session.NewRedisStore(database.RDB, cfg.Storage.StateTTL()),
	}
}

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化状态存储
	repos := newRepositories(cfg)

	var objects storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		var err error
		objects, err = storage.NewMinIOStore(context.Background(), cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
	} else {
		objects = storage.NewMemoryStore()
	}

	// 4. 初始化领域事件发布
	publisher := events.Noop()
	if cfg.Kafka.Brokers != "" {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("关闭 Kafka 生产者失败", err)
			}
		}()
		publisher = kafkaPublisher
	}

	// 5. 初始化 Service (依赖注入)
	presenter, err := ui.NewPresenter(cfg.UI, cfg.Chat)
	if err != nil {
		log.Fatal("页面模板初始化失败", err)
	}
	registry := ui.NewRegistry(time.Duration(cfg.UI.ModalTTLMins) * time.Minute)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)

	chatService := service.NewChatService(cfg.Chat, chatapi.NewClient(cfg.ChatAPI), repos.views, repos.sessions, repos.store, publisher)
	chatListService := service.NewChatListService(repos.sessions, repos.store)
	postService := service.NewPostService(repos.drafts, objects, community.NewClient(cfg.CommunityAPI), publisher, cfg.MinIO.DraftPrefix)
	userService := service.NewUserService(repos.users, jwtManager)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.SetHTMLTemplate(presenter.Templates())
	r.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.OptionalAuth(jwtManager, cfg.JWT.CookieName),
		middleware.SessionContext(cfg.Server.SecureCookies),
	)

	// 7. 注册路由
	handler.RegisterRoutes(r, handler.Handlers{
		Chat:     handler.NewChatHandler(chatService, presenter),
		ChatList: handler.NewChatListHandler(chatListService, repos.store, registry, presenter),
		Post:     handler.NewPostHandler(postService, registry, presenter, cfg.CommunityAPI),
		User: handler.NewUserHandler(userService, presenter, handler.AuthCookie{
			Name:   cfg.JWT.CookieName,
			TTL:    jwtManager.TTL(),
			Secure: cfg.Server.SecureCookies,
		}),
		Modal: handler.NewModalHandler(registry, presenter),
	}, middleware.RequireLogin())

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	// websocket 连接已被劫持，Shutdown 不会等待它们
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}
	log.Info("服务已优雅关闭")
}
