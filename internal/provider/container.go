package provider

import (
	"time"

	"github.com/punchcard-next/internal/authz"
	"github.com/punchcard-next/internal/cache"
	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/queue"
	"github.com/punchcard-next/internal/repository"
	"github.com/punchcard-next/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo       repository.UserRepository
	BusinessRepo   repository.BusinessRepository
	CardRepo       repository.CardRepository
	PunchCodeRepo  repository.PunchCodeRepository
	PunchEventRepo repository.PunchEventRepository

	// Rate limiters
	GenerateRateLimiter service.RateLimiter
	ValidateRateLimiter service.RateLimiter

	// Services
	AuthzService      *authz.Service
	UserAuthService   *service.UserAuthService
	BusinessService   *service.BusinessService
	PunchLedger       *service.PunchLedger
	CardService       *service.CardService
	PunchCodeService  *service.PunchCodeService
	RedemptionService *service.RedemptionService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	return Build(cfg, models.DB, queueClient)
}

// Build 基于已打开的数据库装配容器，不触碰 Redis 与队列的初始化
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化 Services
	c.initServices(db)

	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.UserRepo = repository.NewUserRepository(db)
	c.BusinessRepo = repository.NewBusinessRepository(db)
	c.CardRepo = repository.NewCardRepository(db)
	c.PunchCodeRepo = repository.NewPunchCodeRepository(db)
	c.PunchEventRepo = repository.NewPunchEventRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService

	c.GenerateRateLimiter = service.NewRateLimiter("generate", c.Config.Punch.RateLimit, cache.Client())
	c.ValidateRateLimiter = service.NewRateLimiter("validate", c.Config.Punch.ValidateRateLimit, cache.Client())

	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.BusinessService = service.NewBusinessService(c.BusinessRepo, c.UserRepo, c.AuthzService)
	c.PunchLedger = service.NewPunchLedger(c.PunchEventRepo)
	c.CardService = service.NewCardService(db, c.Config.Card, c.CardRepo, c.BusinessRepo, c.PunchLedger)
	c.PunchCodeService = service.NewPunchCodeService(db, c.Config.Punch, c.CardRepo, c.PunchCodeRepo, c.GenerateRateLimiter)
	c.RedemptionService = service.NewRedemptionService(db, c.CardRepo, c.PunchCodeRepo, c.PunchLedger, c.AuthzService, c.Config.Punch.CodeLength)

	// 集满记账：启用队列时异步处理，否则在进程内直接记账
	if c.QueueClient.Enabled() {
		c.RedemptionService.SetCompletionNotifier(c.QueueClient)
	} else {
		c.RedemptionService.SetCompletionNotifier(c.CardService)
	}
}

// ReconcileInterval 集满对账间隔
func (c *Container) ReconcileInterval() time.Duration {
	if c == nil || c.Config == nil {
		return 0
	}
	return time.Duration(c.Config.Card.ReconcileIntervalSeconds) * time.Second
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
