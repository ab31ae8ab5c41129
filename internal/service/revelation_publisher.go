package service

import (
	"context"
	"time"

	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/queue"
)

// PrizeRevealedEvent 奖品揭晓事实，对外通知的唯一数据来源
type PrizeRevealedEvent struct {
	PrizeID             uint      `json:"prize_id"`
	RaffleID            uint      `json:"raffle_id"`
	PrizeName           string    `json:"prize_name"`
	WinningTicketNumber int       `json:"winning_ticket_number"`
	WinnerOwnerRef      string    `json:"winner_owner_ref,omitempty"`
	UnlockedAt          time.Time `json:"unlocked_at"`
}

// RevelationPublisher 发布奖品揭晓事实
type RevelationPublisher interface {
	PublishPrizeRevealed(ctx context.Context, event PrizeRevealedEvent) error
}

// QueueRevelationPublisher 通过异步队列投递揭晓事实，队列未启用时仅写日志
type QueueRevelationPublisher struct {
	client *queue.Client
}

// NewQueueRevelationPublisher 创建队列发布器
func NewQueueRevelationPublisher(client *queue.Client) *QueueRevelationPublisher {
	return &QueueRevelationPublisher{client: client}
}

// PublishPrizeRevealed 入队 prize:revealed 任务
func (p *QueueRevelationPublisher) PublishPrizeRevealed(_ context.Context, event PrizeRevealedEvent) error {
	if p == nil || !p.client.Enabled() {
		logger.Infow("prize_revealed",
			"raffle_id", event.RaffleID,
			"prize_id", event.PrizeID,
			"prize_name", event.PrizeName,
			"winning_ticket_number", event.WinningTicketNumber,
			"winner_owner_ref", event.WinnerOwnerRef,
			"delivery", "log_only",
		)
		return nil
	}
	return p.client.EnqueuePrizeRevealed(ToPrizeRevealedPayload(event))
}

// ToPrizeRevealedPayload 转换为队列载荷
func ToPrizeRevealedPayload(event PrizeRevealedEvent) queue.PrizeRevealedPayload {
	return queue.PrizeRevealedPayload{
		PrizeID:             event.PrizeID,
		RaffleID:            event.RaffleID,
		PrizeName:           event.PrizeName,
		WinningTicketNumber: event.WinningTicketNumber,
		WinnerOwnerRef:      event.WinnerOwnerRef,
		UnlockedAt:          event.UnlockedAt,
	}
}

// FromPrizeRevealedPayload 由队列载荷还原事件
func FromPrizeRevealedPayload(payload queue.PrizeRevealedPayload) PrizeRevealedEvent {
	return PrizeRevealedEvent{
		PrizeID:             payload.PrizeID,
		RaffleID:            payload.RaffleID,
		PrizeName:           payload.PrizeName,
		WinningTicketNumber: payload.WinningTicketNumber,
		WinnerOwnerRef:      payload.WinnerOwnerRef,
		UnlockedAt:          payload.UnlockedAt,
	}
}

// PrizeNotifier 揭晓通知的外部投递边界
type PrizeNotifier interface {
	NotifyPrizeRevealed(ctx context.Context, event PrizeRevealedEvent) error
}

// LogPrizeNotifier 以结构化日志投递通知
type LogPrizeNotifier struct{}

// NotifyPrizeRevealed 记录揭晓通知
func (LogPrizeNotifier) NotifyPrizeRevealed(_ context.Context, event PrizeRevealedEvent) error {
	logger.Infow("prize_revealed_notified",
		"raffle_id", event.RaffleID,
		"prize_id", event.PrizeID,
		"prize_name", event.PrizeName,
		"winning_ticket_number", event.WinningTicketNumber,
		"winner_owner_ref", event.WinnerOwnerRef,
		"unlocked_at", event.UnlockedAt,
	)
	return nil
}
