package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raffle-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPrizeRevealed 奖品揭晓通知任务
	TaskPrizeRevealed = constants.TaskPrizeRevealed
	// TaskRaffleRescan 活动开奖重新扫描任务
	TaskRaffleRescan = constants.TaskRaffleRescan
)

// PrizeRevealedPayload 奖品揭晓任务载荷
type PrizeRevealedPayload struct {
	PrizeID             uint      `json:"prize_id"`
	RaffleID            uint      `json:"raffle_id"`
	PrizeName           string    `json:"prize_name"`
	WinningTicketNumber int       `json:"winning_ticket_number"`
	WinnerOwnerRef      string    `json:"winner_owner_ref,omitempty"`
	UnlockedAt          time.Time `json:"unlocked_at"`
}

// RaffleRescanPayload 重新扫描任务载荷
type RaffleRescanPayload struct {
	RaffleID uint   `json:"raffle_id"`
	Reason   string `json:"reason,omitempty"`
}

// NewPrizeRevealedTask 创建奖品揭晓任务
func NewPrizeRevealedTask(payload PrizeRevealedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPrizeRevealed, body), nil
}

// NewRaffleRescanTask 创建重新扫描任务
func NewRaffleRescanTask(payload RaffleRescanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRaffleRescan, body), nil
}

// prizeRevealedTaskID 同一奖品只入队一次揭晓通知
func prizeRevealedTaskID(prizeID uint) string {
	return fmt.Sprintf("%s:%d", TaskPrizeRevealed, prizeID)
}
