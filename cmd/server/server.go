package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/cache"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mailer"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mq"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"github.com/3Eeeecho/go-grocerylist/internal/router"
	"github.com/3Eeeecho/go-grocerylist/internal/services/admin"
	"github.com/3Eeeecho/go-grocerylist/internal/services/lists"
	"github.com/3Eeeecho/go-grocerylist/internal/services/share"
	"github.com/3Eeeecho/go-grocerylist/internal/setup"
	"github.com/3Eeeecho/go-grocerylist/internal/task"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	mqClient    *mq.RabbitMQClient
	scheduler   *task.Scheduler
}

// services 是 HTTP 服务和命令行任务共用的业务层
type services struct {
	auth  admin.AuthService
	user  admin.UserService
	list  lists.ListService
	share share.ShareService
}

// buildServices 初始化 Repositories 和 Services，redisCache 为 nil 时成员列表不走缓存
// mqClient 为 nil 时不发布成员变更事件
func buildServices(cfg *config.Config, db *gorm.DB, redisCache cache.Cache, mqClient *mq.RabbitMQClient) *services {
	userRepo := repositories.NewUserRepository(db)
	listRepo := repositories.NewListRepository(db, cfg.Share.AllowListRetries)
	tokenRepo := repositories.NewShareTokenRepository(db)
	memberRepo := repositories.NewShareMemberRepository(db)
	if redisCache != nil {
		memberRepo = repositories.NewCachedShareMemberRepository(memberRepo, redisCache, cfg.Share.MembersCacheTTL)
	}
	tm := repositories.NewTransactionManager(db)

	authService := admin.NewAuthService(userRepo, cfg.JWT)
	opts := []share.Option{share.WithIdentityProvider(authService)}
	if cfg.Mail.Host != "" {
		opts = append(opts, share.WithMailer(mailer.New(cfg.Mail)))
	} else {
		logger.Warn("mail.host 未配置，分享邀请邮件不可用")
	}
	if mqClient != nil {
		opts = append(opts, share.WithEventPublisher(mq.NewEventPublisher(mqClient)))
	}

	return &services{
		auth:  authService,
		user:  admin.NewUserService(userRepo),
		list:  lists.NewListService(listRepo, memberRepo),
		share: share.NewShareService(tm, tokenRepo, memberRepo, listRepo, cfg.Share, opts...),
	}
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接
	db, err := setup.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 初始化 Redis 连接
	redisClient, err := setup.InitRedis(context.Background(), &cfg.Redis)
	if err != nil {
		setup.CloseDatabase(db)
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	redisCache := cache.NewRedisCache(redisClient)

	// RabbitMQ 可选，未配置 url 时跳过
	var mqClient *mq.RabbitMQClient
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = mq.NewRabbitMQClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			setup.CloseRedis(redisClient)
			setup.CloseDatabase(db)
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
	}

	svc := buildServices(cfg, db, redisCache, mqClient)

	// 过期 token 清理任务
	scheduler := task.NewScheduler(time.Minute)
	if cfg.Task.CleanupSpec != "" {
		if err := scheduler.AddTask(cfg.Task.CleanupSpec, task.NewTokenCleanupTask(svc.share)); err != nil {
			if mqClient != nil {
				mqClient.Close()
			}
			setup.CloseRedis(redisClient)
			setup.CloseDatabase(db)
			return nil, err
		}
	}

	// 初始化 Gin 引擎和注册路由
	engine := router.InitRouter(router.NewRouterConfig(cfg, redisCache, svc.auth, svc.user, svc.list, svc.share))

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer:  httpServer,
		db:          db,
		redisClient: redisClient,
		mqClient:    mqClient,
		scheduler:   scheduler,
	}, nil
}

// Run 启动服务器和定时任务，并处理优雅关机
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	// GORM 依赖连接池，这里统一释放数据库和 Redis 连接
	defer setup.CloseDatabase(s.db)
	defer setup.CloseRedis(s.redisClient)
	if s.mqClient != nil {
		defer s.mqClient.Close()
	}

	s.scheduler.Start()

	// 启动 HTTP 服务器
	go func() {
		logger.Info(fmt.Sprintf("Server is running on %s", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	select {
	case <-stopChan:
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	s.scheduler.Stop(shutdownCtx)
	logger.Info("Server exited gracefully")
}

// CleanupTokens 供外部调度器调用的一次性清理，不依赖 Redis
func CleanupTokens(ctx context.Context, cfg *config.Config) (int, error) {
	db, err := setup.InitDatabase(&cfg.Database)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer setup.CloseDatabase(db)

	svc := buildServices(cfg, db, nil, nil)
	return svc.share.CleanupExpiredTokens(ctx)
}
