package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mtsp/internal/database"
	"mtsp/internal/router"
	"mtsp/internal/services"
	"mtsp/pkg/config"
	"mtsp/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting Multi-Tenant SaaS Platform...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseBillingQueue(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	// 执行数据库迁移
	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 构造服务
	businessService := services.NewBusinessService()
	userService := services.NewUserService()
	subscriptionService := services.NewSubscriptionService()
	onboardingService := services.NewOnboardingService(businessService, userService, subscriptionService)
	authorizationService := services.NewAuthorizationService(subscriptionService)
	presenceWindow := time.Duration(cfg.Presence.OnlineWindowSeconds) * time.Second
	presenceTracker := services.NewPresenceTracker(userService, presenceWindow)

	// 执行种子数据初始化
	if err := seedData(userService); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 启动订阅到期巡检调度器
	subscriptionScheduler := services.NewSubscriptionScheduler(subscriptionService)
	if err := subscriptionScheduler.Start(); err != nil {
		appLogger.Errorf("Failed to start subscription scheduler: %v", err)
		// 不影响主服务启动
	}
	defer subscriptionScheduler.Stop()

	// 启动在线状态清理调度器
	presenceScheduler := services.NewPresenceScheduler(presenceTracker)
	if err := presenceScheduler.Start(); err != nil {
		appLogger.Errorf("Failed to start presence scheduler: %v", err)
		// 不影响主服务启动
	}
	defer presenceScheduler.Stop()

	// 启动计费事件消费者
	billingConsumer := services.NewBillingConsumer(database.GetBillingQueue(), subscriptionService)
	billingConsumer.Start()
	defer billingConsumer.Stop()

	// 设置路由
	r := router.SetupRouter(router.Dependencies{
		UserService:         userService,
		BusinessService:     businessService,
		SubscriptionService: subscriptionService,
		OnboardingService:   onboardingService,
		AuthorizationSvc:    authorizationService,
		PresenceTracker:     presenceTracker,
	})

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	if err := server.Close(); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
