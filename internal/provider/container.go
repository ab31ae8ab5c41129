package provider

import (
	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/queue"
	"github.com/raffle-next/internal/repository"
	"github.com/raffle-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	RaffleRepo repository.RaffleRepository
	TicketRepo repository.TicketRepository
	PrizeRepo  repository.PrizeRepository

	// Services
	TicketPool          *service.TicketPool
	WinnerBinder        *service.WinnerBinder
	RevelationPublisher service.RevelationPublisher
	PrizeNotifier       service.PrizeNotifier
	RevelationScheduler *service.RevelationScheduler
	AllocationService   *service.AllocationService
	PrizeService        *service.PrizeService
	RaffleService       *service.RaffleService
	StatsService        *service.StatsService
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

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.RaffleRepo = repository.NewRaffleRepository(db)
	c.TicketRepo = repository.NewTicketRepository(db)
	c.PrizeRepo = repository.NewPrizeRepository(db)
}

func (c *Container) initServices() {
	raffleCfg := c.Config.Raffle
	c.TicketPool = service.NewTicketPool(c.RaffleRepo, c.TicketRepo, c.PrizeRepo, raffleCfg)
	c.WinnerBinder = service.NewWinnerBinder(c.TicketRepo, nil)
	c.RevelationPublisher = service.NewQueueRevelationPublisher(c.QueueClient)
	c.PrizeNotifier = service.LogPrizeNotifier{}
	c.RevelationScheduler = service.NewRevelationScheduler(c.RaffleRepo, c.TicketRepo, c.PrizeRepo, c.TicketPool, c.RevelationPublisher, raffleCfg)
	c.AllocationService = service.NewAllocationService(c.RaffleRepo, c.TicketRepo, c.TicketPool, c.RevelationScheduler, c.QueueClient, raffleCfg)
	c.PrizeService = service.NewPrizeService(c.RaffleRepo, c.TicketRepo, c.PrizeRepo, c.WinnerBinder, c.RevelationScheduler, raffleCfg)
	c.RaffleService = service.NewRaffleService(c.RaffleRepo, c.TicketRepo, c.TicketPool, c.RevelationScheduler, raffleCfg)
	c.StatsService = service.NewStatsService(c.RaffleRepo, c.PrizeRepo, c.TicketPool, raffleCfg)
}

// Close 释放队列客户端
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return c.QueueClient.Close()
}
