package worker

import (
	"context"
	"errors"
	"time"

	"github.com/raffle-next/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// RescanFunc 对所有售卖中的活动补扫一次，返回解锁奖品数
type RescanFunc func(ctx context.Context) (int, error)

// RescanService 定时补扫开奖，兜底售出后扫描失败的活动
type RescanService struct {
	name      string
	interval  time.Duration
	rescan    RescanFunc
	scheduler gocron.Scheduler
}

// NewRescanService 创建定时补扫服务；interval 必须大于 0
func NewRescanService(interval time.Duration, rescan RescanFunc) (*RescanService, error) {
	if interval <= 0 {
		return nil, errors.New("rescan interval must be positive")
	}
	if rescan == nil {
		return nil, errors.New("rescan func is nil")
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &RescanService{
		name:      "rescan",
		interval:  interval,
		rescan:    rescan,
		scheduler: scheduler,
	}, nil
}

// Name 服务名称
func (s *RescanService) Name() string {
	if s == nil || s.name == "" {
		return "rescan"
	}
	return s.name
}

// Start 注册补扫任务并阻塞到 ctx 结束
func (s *RescanService) Start(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return errors.New("rescan scheduler not initialized")
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.runOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度器
func (s *RescanService) Stop(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	_ = ctx
	return s.scheduler.Shutdown()
}

func (s *RescanService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	unlocked, err := s.rescan(ctx)
	if err != nil {
		logger.Warnw("worker_rescan_active_failed", "unlocked", unlocked, "error", err)
		return
	}
	if unlocked > 0 {
		logger.Infow("worker_rescan_active_unlocked", "unlocked", unlocked)
	}
}
