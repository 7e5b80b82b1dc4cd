package router

import (
	"time"

	"mtsp/internal/database"
	"mtsp/internal/handlers"
	"mtsp/internal/middleware"
	"mtsp/internal/services"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由依赖的服务集合，由 main 统一构造注入
type Dependencies struct {
	UserService         *services.UserService
	BusinessService     *services.BusinessService
	SubscriptionService *services.SubscriptionService
	OnboardingService   *services.OnboardingService
	AuthorizationSvc    *services.AuthorizationService
	PresenceTracker     *services.PresenceTracker
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {

	auth := middleware.NewAuthMiddleware(deps.UserService)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 认证路由（无需登录）
		authHandler := handlers.NewAuthHandler(deps.UserService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/refresh", authHandler.RefreshToken)

			// 🔒 获取当前用户信息
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 自助注册（无需登录）
		onboardingHandler := handlers.NewOnboardingHandler(deps.OnboardingService)
		api.POST("/signup", onboardingHandler.Signup)

		// 企业路由
		businessHandler := handlers.NewBusinessHandler(deps.BusinessService, deps.AuthorizationSvc, deps.OnboardingService)
		userHandler := handlers.NewUserHandler(deps.UserService, deps.AuthorizationSvc, deps.PresenceTracker)
		subscriptionHandler := handlers.NewSubscriptionHandler(deps.SubscriptionService, deps.AuthorizationSvc)
		presenceHandler := handlers.NewPresenceHandler(deps.PresenceTracker, deps.AuthorizationSvc)

		businesses := api.Group("/businesses", auth.RequireLogin())
		{
			// 🔒 平台级操作（仅超级管理员）
			businesses.POST("", auth.RequireSuperAdmin(), businessHandler.Create)
			businesses.GET("", auth.RequireSuperAdmin(), businessHandler.GetAll)
			businesses.GET("/stats", auth.RequireSuperAdmin(), businessHandler.GetStats)
			businesses.DELETE("/:id", auth.RequireSuperAdmin(), businessHandler.Delete)

			// 🔒 租户范围操作（统一授权网关判定）
			businesses.GET("/:id", businessHandler.GetByID)
			businesses.PUT("/:id", businessHandler.Update)
			businesses.POST("/:id/transfer-ownership", userHandler.TransferOwnership)

			// 🔒 成员管理
			businesses.POST("/:id/users", userHandler.Create)
			businesses.GET("/:id/users", userHandler.GetByBusiness)
			businesses.GET("/:id/users/stats", userHandler.GetStats)

			// 🔒 订阅管理
			businesses.GET("/:id/subscription", subscriptionHandler.GetCurrent)
			businesses.GET("/:id/subscription/history", subscriptionHandler.GetHistory)
			businesses.POST("/:id/subscription/cancel", subscriptionHandler.Cancel)
			businesses.POST("/:id/subscription/resubscribe", subscriptionHandler.Resubscribe)

			// 🔒 在线状态快照
			businesses.GET("/:id/presence", presenceHandler.Snapshot)
		}

		// 用户路由
		users := api.Group("/users", auth.RequireLogin())
		{
			users.GET("/:id", userHandler.GetByID)
			users.PUT("/:id", userHandler.Update)
			users.DELETE("/:id", userHandler.Delete)

			// 🔒 状态快捷操作
			users.POST("/:id/activate", userHandler.Activate)
			users.POST("/:id/deactivate", userHandler.Deactivate)
			users.POST("/:id/suspend", userHandler.Suspend)
			users.POST("/:id/reset-password", userHandler.ResetPassword)
		}

		// 本人操作
		me := api.Group("/me", auth.RequireLogin())
		{
			me.DELETE("", userHandler.DeleteSelf)
			me.POST("/heartbeat", presenceHandler.Heartbeat)
			me.GET("/heartbeat/ws", presenceHandler.HeartbeatStream)
		}

		// 计费回调路由（访问密钥认证，不走用户JWT）
		billingHandler := handlers.NewBillingHandler(deps.SubscriptionService, database.GetBillingQueue())
		billing := api.Group("/billing", middleware.RequireBillingKey())
		{
			billing.POST("/events", billingHandler.Receive)
			billing.POST("/events/enqueue", billingHandler.Enqueue)
		}

		// 🔒 队列积压（仅超级管理员）
		api.GET("/billing/queue", auth.RequireLogin(), auth.RequireSuperAdmin(), billingHandler.QueueStatus)
	}
}

// healthCheck 健康检查：数据库与Redis连通性
func healthCheck(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now(),
	}

	sqlDB, err := database.GetDB().DB()
	if err != nil || sqlDB.Ping() != nil {
		status["status"] = "degraded"
		status["database"] = "down"
	} else {
		status["database"] = "up"
	}

	if err := database.GetBillingQueue().Ping(); err != nil {
		status["status"] = "degraded"
		status["redis"] = "down"
	} else {
		status["redis"] = "up"
	}

	response.Success(c, status)
}

func ping(c *gin.Context) {
	response.Success(c, gin.H{"message": "pong"})
}
