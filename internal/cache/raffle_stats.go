package cache

import (
	"context"
	"fmt"
	"time"
)

// RaffleStats 活动售券统计快照，仅作展示用，允许短暂落后于最新售出
type RaffleStats struct {
	RaffleID   uint   `json:"raffle_id"`
	Total      int64  `json:"total"`
	Sold       int64  `json:"sold"`
	Available  int64  `json:"available"`
	Winners    int64  `json:"winners"`
	Percentage string `json:"percentage"`
	Unlocked   int    `json:"unlocked_prizes"`
	Locked     int    `json:"locked_prizes"`
	ComputedAt int64  `json:"computed_at"`
}

func raffleStatsKey(raffleID uint) string {
	return fmt.Sprintf("raffle:stats:%d", raffleID)
}

// GetRaffleStats 读取统计缓存
func GetRaffleStats(ctx context.Context, raffleID uint) (*RaffleStats, bool, error) {
	if raffleID == 0 {
		return nil, false, nil
	}
	var stats RaffleStats
	hit, err := GetJSON(ctx, raffleStatsKey(raffleID), &stats)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &stats, true, nil
}

// SetRaffleStats 写入统计缓存
func SetRaffleStats(ctx context.Context, stats *RaffleStats, ttl time.Duration) error {
	if stats == nil || stats.RaffleID == 0 {
		return nil
	}
	return SetJSON(ctx, raffleStatsKey(stats.RaffleID), stats, ttl)
}

// InvalidateRaffleStats 售出或开奖后删除统计缓存
func InvalidateRaffleStats(ctx context.Context, raffleID uint) error {
	if raffleID == 0 {
		return nil
	}
	return Del(ctx, raffleStatsKey(raffleID))
}
