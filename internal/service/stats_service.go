package service

import (
	"context"
	"time"

	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/repository"
)

// StatsService 售券统计，结果短暂缓存
type StatsService struct {
	raffleRepo repository.RaffleRepository
	prizeRepo  repository.PrizeRepository
	pool       *TicketPool
	cfg        config.RaffleConfig
}

// NewStatsService 创建统计服务
func NewStatsService(raffleRepo repository.RaffleRepository, prizeRepo repository.PrizeRepository, pool *TicketPool, cfg config.RaffleConfig) *StatsService {
	return &StatsService{
		raffleRepo: raffleRepo,
		prizeRepo:  prizeRepo,
		pool:       pool,
		cfg:        cfg.Normalize(),
	}
}

// GetRaffleStats 获取活动统计，缓存未命中时读取快照并回填
func (s *StatsService) GetRaffleStats(ctx context.Context, raffleID uint) (*cache.RaffleStats, error) {
	if raffleID == 0 {
		return nil, ErrRaffleNotFound
	}
	cached, hit, err := cache.GetRaffleStats(ctx, raffleID)
	if err != nil {
		logger.Warnw("raffle_stats_cache_get_failed", "raffle_id", raffleID, "error", err)
	}
	if hit && cached != nil {
		return cached, nil
	}

	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	raffle, err := s.raffleRepo.WithContext(sctx).GetByID(raffleID)
	cancel()
	if err != nil {
		return nil, wrapStorageError(err)
	}
	if raffle == nil {
		return nil, ErrRaffleNotFound
	}
	snapshot, err := s.pool.Snapshot(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	sctx, cancel = withStorageTimeout(ctx, s.cfg.StorageTimeout())
	prizes, err := s.prizeRepo.WithContext(sctx).ListByRaffle(raffleID, "")
	cancel()
	if err != nil {
		return nil, wrapStorageError(err)
	}

	stats := &cache.RaffleStats{
		RaffleID:   raffleID,
		Total:      snapshot.Total,
		Sold:       snapshot.Sold,
		Available:  snapshot.Available,
		Winners:    snapshot.Winners,
		Percentage: snapshot.Percentage.StringFixed(2),
		ComputedAt: time.Now().Unix(),
	}
	for i := range prizes {
		if prizes[i].Status == constants.PrizeStatusUnlocked {
			stats.Unlocked++
		} else {
			stats.Locked++
		}
	}
	ttl := time.Duration(s.cfg.StatsCacheTTLSeconds) * time.Second
	if err := cache.SetRaffleStats(ctx, stats, ttl); err != nil {
		logger.Warnw("raffle_stats_cache_set_failed", "raffle_id", raffleID, "error", err)
	}
	return stats, nil
}
