package worker

import (
	"context"
	"encoding/json"

	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/provider"
	"github.com/raffle-next/internal/queue"
	"github.com/raffle-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPrizeRevealed, c.handlePrizeRevealed)
	mux.HandleFunc(queue.TaskRaffleRescan, c.handleRaffleRescan)
}

func (c *Consumer) handlePrizeRevealed(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_prize_revealed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PrizeRevealedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_prize_revealed_unmarshal_failed", "error", err)
		return err
	}
	if payload.PrizeID == 0 || payload.RaffleID == 0 {
		logger.Debugw("worker_prize_revealed_skip_invalid_payload", "prize_id", payload.PrizeID, "raffle_id", payload.RaffleID)
		return nil
	}
	if c.PrizeNotifier == nil {
		logger.Warnw("worker_prize_revealed_skip_notifier_nil", "prize_id", payload.PrizeID)
		return nil
	}
	if err := c.PrizeNotifier.NotifyPrizeRevealed(ctx, service.FromPrizeRevealedPayload(payload)); err != nil {
		logger.Warnw("worker_prize_revealed_notify_failed",
			"raffle_id", payload.RaffleID,
			"prize_id", payload.PrizeID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleRaffleRescan(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_raffle_rescan_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RaffleRescanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_raffle_rescan_unmarshal_failed", "error", err)
		return err
	}
	if payload.RaffleID == 0 {
		logger.Debugw("worker_raffle_rescan_skip_invalid_payload", "raffle_id", payload.RaffleID)
		return nil
	}
	if c.RevelationScheduler == nil {
		logger.Warnw("worker_raffle_rescan_skip_scheduler_nil", "raffle_id", payload.RaffleID)
		return nil
	}
	result, err := c.RevelationScheduler.Reveal(ctx, payload.RaffleID)
	if err != nil {
		logger.Warnw("worker_raffle_rescan_failed", "raffle_id", payload.RaffleID, "reason", payload.Reason, "error", err)
		return err
	}
	logger.Infow("worker_raffle_rescan_done",
		"raffle_id", payload.RaffleID,
		"reason", payload.Reason,
		"unlocked", len(result.Unlocked),
	)
	return nil
}
