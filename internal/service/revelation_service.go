package service

import (
	"context"
	"errors"
	"time"

	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevelationScheduler 根据售出进度解锁奖品并标记中奖券
type RevelationScheduler struct {
	raffleRepo repository.RaffleRepository
	ticketRepo repository.TicketRepository
	prizeRepo  repository.PrizeRepository
	pool       *TicketPool
	publisher  RevelationPublisher
	cfg        config.RaffleConfig
}

// NewRevelationScheduler 创建开奖调度器
func NewRevelationScheduler(raffleRepo repository.RaffleRepository, ticketRepo repository.TicketRepository, prizeRepo repository.PrizeRepository, pool *TicketPool, publisher RevelationPublisher, cfg config.RaffleConfig) *RevelationScheduler {
	return &RevelationScheduler{
		raffleRepo: raffleRepo,
		ticketRepo: ticketRepo,
		prizeRepo:  prizeRepo,
		pool:       pool,
		publisher:  publisher,
		cfg:        cfg.Normalize(),
	}
}

// RevelationResult 单次开奖扫描结果
type RevelationResult struct {
	RaffleID   uint                 `json:"raffle_id"`
	Sold       int64                `json:"sold"`
	Total      int64                `json:"total"`
	Percentage decimal.Decimal      `json:"percentage"`
	Unlocked   []PrizeRevealedEvent `json:"unlocked"`
	// Redelivered 之前投递失败、本次重新发布成功的揭晓事实
	Redelivered []PrizeRevealedEvent `json:"redelivered,omitempty"`
}

// Reveal 读取一次快照，解锁满足条件且已绑定中奖券的奖品。重复执行是幂等的。
// 单个奖品失败不影响其他奖品，返回遇到的第一个存储错误。
func (s *RevelationScheduler) Reveal(ctx context.Context, raffleID uint) (*RevelationResult, error) {
	snapshot, err := s.pool.Snapshot(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	result := &RevelationResult{
		RaffleID:   raffleID,
		Sold:       snapshot.Sold,
		Total:      snapshot.Total,
		Percentage: snapshot.Percentage,
		Unlocked:   []PrizeRevealedEvent{},
	}

	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	prizes, err := s.prizeRepo.WithContext(sctx).ListByRaffle(raffleID, constants.PrizeStatusLocked)
	cancel()
	if err != nil {
		return nil, wrapStorageError(err)
	}

	var firstErr error
	for i := range prizes {
		prize := &prizes[i]
		if !thresholdReached(prize, snapshot.Sold, snapshot.Total) {
			continue
		}
		if prize.WinnerTicketID == nil {
			logger.Warnw("revelation_prize_unbound",
				"raffle_id", raffleID,
				"prize_id", prize.ID,
			)
			continue
		}
		event, err := s.unlockPrize(ctx, prize)
		if err != nil {
			if errors.Is(err, ErrAlreadyWinner) {
				logger.Errorw("revelation_winner_conflict",
					"raffle_id", raffleID,
					"prize_id", prize.ID,
					"ticket_id", *prize.WinnerTicketID,
					"error", err,
				)
				continue
			}
			logger.Warnw("revelation_prize_unlock_failed",
				"raffle_id", raffleID,
				"prize_id", prize.ID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if event == nil {
			continue
		}
		result.Unlocked = append(result.Unlocked, *event)
		logger.Infow("revelation_prize_unlocked",
			"raffle_id", raffleID,
			"prize_id", prize.ID,
			"winning_ticket_number", event.WinningTicketNumber,
			"sold", snapshot.Sold,
			"total", snapshot.Total,
		)
		s.publish(ctx, *event)
	}

	justUnlocked := make(map[uint]struct{}, len(result.Unlocked))
	for _, event := range result.Unlocked {
		justUnlocked[event.PrizeID] = struct{}{}
	}
	result.Redelivered = s.redeliverPending(ctx, raffleID, justUnlocked)

	if len(result.Unlocked) > 0 {
		if err := cache.InvalidateRaffleStats(ctx, raffleID); err != nil {
			logger.Warnw("revelation_stats_invalidate_failed", "raffle_id", raffleID, "error", err)
		}
	}
	return result, firstErr
}

// publish 投递揭晓事实，成功后记录 notified_at；失败的事实留给下次扫描
func (s *RevelationScheduler) publish(ctx context.Context, event PrizeRevealedEvent) bool {
	if s.publisher == nil {
		return false
	}
	if err := s.publisher.PublishPrizeRevealed(ctx, event); err != nil {
		logger.Errorw("revelation_publish_failed",
			"raffle_id", event.RaffleID,
			"prize_id", event.PrizeID,
			"error", err,
		)
		return false
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	if _, err := s.prizeRepo.WithContext(sctx).MarkNotified(event.PrizeID, time.Now()); err != nil {
		logger.Warnw("revelation_mark_notified_failed",
			"raffle_id", event.RaffleID,
			"prize_id", event.PrizeID,
			"error", wrapStorageError(err),
		)
	}
	return true
}

// redeliverPending 重新发布已解锁但未投递成功的奖品，skip 中为本次刚解锁的奖品
func (s *RevelationScheduler) redeliverPending(ctx context.Context, raffleID uint, skip map[uint]struct{}) []PrizeRevealedEvent {
	if s.publisher == nil {
		return nil
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	pending, err := s.prizeRepo.WithContext(sctx).ListUnnotified(raffleID)
	cancel()
	if err != nil {
		logger.Warnw("revelation_list_unnotified_failed", "raffle_id", raffleID, "error", wrapStorageError(err))
		return nil
	}
	var delivered []PrizeRevealedEvent
	for i := range pending {
		prize := &pending[i]
		if _, ok := skip[prize.ID]; ok || prize.WinnerTicketID == nil {
			continue
		}
		tctx, tcancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
		ticket, err := s.ticketRepo.WithContext(tctx).GetByID(*prize.WinnerTicketID)
		tcancel()
		if err != nil || ticket == nil {
			logger.Warnw("revelation_redeliver_ticket_missing", "raffle_id", raffleID, "prize_id", prize.ID, "error", err)
			continue
		}
		event := revealedEvent(prize, ticket)
		if s.publish(ctx, event) {
			logger.Infow("revelation_prize_redelivered", "raffle_id", raffleID, "prize_id", prize.ID)
			delivered = append(delivered, event)
		}
	}
	return delivered
}

// revealedEvent 由已解锁奖品与其中奖券构造揭晓事实
func revealedEvent(prize *models.Prize, ticket *models.Ticket) PrizeRevealedEvent {
	event := PrizeRevealedEvent{
		PrizeID:             prize.ID,
		RaffleID:            prize.RaffleID,
		PrizeName:           prize.Name,
		WinningTicketNumber: ticket.Number,
	}
	if prize.UnlockedAt != nil {
		event.UnlockedAt = *prize.UnlockedAt
	}
	if ticket.IsSold() {
		event.WinnerOwnerRef = ticket.OwnerRef
	}
	return event
}

// unlockPrize 单事务内完成 locked→unlocked 与中奖标记；已被其他执行解锁时返回 nil
func (s *RevelationScheduler) unlockPrize(ctx context.Context, prize *models.Prize) (*PrizeRevealedEvent, error) {
	var event *PrizeRevealedEvent
	err := runInTx(ctx, s.cfg.StorageTimeout(), func(tx *gorm.DB) error {
		unlockedAt := time.Now()
		affected, err := s.prizeRepo.WithTx(tx).Unlock(prize.ID, unlockedAt)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		ticketID := *prize.WinnerTicketID
		if err := s.pool.MarkWinner(ctx, tx, ticketID, prize.ID); err != nil {
			return err
		}
		ticket, err := s.ticketRepo.WithTx(tx).GetByID(ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return ErrTicketNotFound
		}
		unlocked := *prize
		unlocked.UnlockedAt = &unlockedAt
		revealed := revealedEvent(&unlocked, ticket)
		event = &revealed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// thresholdReached 百分比条件使用 sold*100 >= p*total 精确比较，总数为 0 时不满足
func thresholdReached(prize *models.Prize, sold, total int64) bool {
	if prize == nil {
		return false
	}
	if prize.ThresholdPercent != nil {
		if total <= 0 {
			return false
		}
		lhs := decimal.NewFromInt(sold).Mul(hundred)
		rhs := prize.ThresholdPercent.Mul(decimal.NewFromInt(total))
		return lhs.GreaterThanOrEqual(rhs)
	}
	if prize.ThresholdCount != nil {
		return sold >= int64(*prize.ThresholdCount)
	}
	return false
}

// RescanActive 对所有售卖中的活动执行一次开奖扫描，返回解锁的奖品数
func (s *RevelationScheduler) RescanActive(ctx context.Context) (int, error) {
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	ids, err := s.raffleRepo.WithContext(sctx).ListIDsByStatus(constants.RaffleStatusActive)
	cancel()
	if err != nil {
		return 0, wrapStorageError(err)
	}
	unlocked := 0
	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return unlocked, err
		}
		result, err := s.Reveal(ctx, id)
		if result != nil {
			unlocked += len(result.Unlocked)
		}
		if err != nil {
			logger.Warnw("revelation_rescan_failed", "raffle_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return unlocked, firstErr
}
