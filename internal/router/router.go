package router

import (
	"net/http"

	_ "github.com/3Eeeecho/go-grocerylist/docs"
	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/handlers"
	"github.com/3Eeeecho/go-grocerylist/internal/middlewares"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/cache"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/metrics"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/services/admin"
	"github.com/3Eeeecho/go-grocerylist/internal/services/lists"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterConfig 包含初始化路由所需的所有依赖
type RouterConfig struct {
	cfg          *config.Config
	cache        cache.Cache
	authService  admin.AuthService
	userService  admin.UserService
	listService  lists.ListService
	shareService share.ShareService
}

func NewRouterConfig(
	cfg *config.Config,
	c cache.Cache,
	authService admin.AuthService,
	userService admin.UserService,
	listService lists.ListService,
	shareService share.ShareService,
) *RouterConfig {
	return &RouterConfig{
		cfg:          cfg,
		cache:        c,
		authService:  authService,
		userService:  userService,
		listService:  listService,
		shareService: shareService,
	}
}

func InitRouter(rc *RouterConfig) *gin.Engine {
	// 设置 Gin 模式，开发环境为 debug，生产环境为 release
	if rc.cfg.Server.Mode != "" {
		gin.SetMode(rc.cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middlewares.Metrics())

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", metrics.Handler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authHandler := handlers.NewAuthHandler(rc.authService)
	userHandler := handlers.NewUserHandler(rc.userService)
	listHandler := handlers.NewListHandler(rc.listService, rc.shareService)
	shareHandler := handlers.NewShareHandler(rc.shareService, rc.listService)
	joinHandler := handlers.NewJoinHandler(rc.shareService)

	jwtCfg := rc.cfg.JWT
	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/anonymous", authHandler.SignInAnonymously)
			authGroup.POST("/link", middlewares.AuthMiddleware(jwtCfg), authHandler.LinkCredentials)
		}

		// 分享链接落地页，已登录用户和访客都可以访问
		joinGroup := v1.Group("/join")
		joinGroup.Use(middlewares.OptionalAuth(jwtCfg))
		{
			joinGroup.GET("/:token", joinHandler.Preview)
			joinGroup.POST("/:token",
				middlewares.JoinRateLimit(rc.cache, rc.cfg.Share.JoinRateLimit, rc.cfg.Share.JoinRateLimitSpan),
				joinHandler.Join)
		}

		// 需要认证的路由组
		authenticated := v1.Group("/")
		authenticated.Use(middlewares.AuthMiddleware(jwtCfg))

		authenticated.GET("/users/me", userHandler.GetUserProfile)
		authenticated.POST("/qr/join", listHandler.JoinViaQR)

		listGroup := authenticated.Group("/lists")
		{
			listGroup.POST("", listHandler.CreateList)
			listGroup.GET("", listHandler.ListUserLists)
			listGroup.GET("/:list_id", listHandler.GetList)

			listGroup.POST("/:list_id/shares", shareHandler.CreateShare)
			listGroup.GET("/:list_id/shares", shareHandler.ListShares)
			listGroup.DELETE("/:list_id/shares/:token", shareHandler.RevokeShare)
			listGroup.POST("/:list_id/shares/:token/invite", shareHandler.SendInvite)

			listGroup.GET("/:list_id/members", shareHandler.ListMembers)
			listGroup.GET("/:list_id/members/me", shareHandler.MyAccess)
			listGroup.PUT("/:list_id/members/:user_id", shareHandler.UpdateMember)
			listGroup.DELETE("/:list_id/members/:user_id", shareHandler.RemoveMember)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, xerr.NotFoundCode, "Route not found")
	})

	return router
}
