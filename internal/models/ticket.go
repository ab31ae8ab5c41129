package models

import (
	"time"

	"github.com/raffle-next/internal/constants"
)

// Ticket 奖券表，(raffle_id, number) 唯一，号码区间为 [0, capacity)
type Ticket struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	RaffleID     uint       `gorm:"not null;uniqueIndex:idx_ticket_raffle_number,priority:1;index:idx_ticket_raffle_status,priority:1" json:"raffle_id"`
	Number       int        `gorm:"not null;uniqueIndex:idx_ticket_raffle_number,priority:2" json:"number"`
	Status       string     `gorm:"type:varchar(16);not null;index:idx_ticket_raffle_status,priority:2" json:"status"`
	OwnerRef     string     `gorm:"type:varchar(128);index" json:"owner_ref,omitempty"`    // 订单/用户引用，售出时写入
	AllocationID string     `gorm:"type:varchar(64);index" json:"allocation_id,omitempty"` // 同一次购买的批次号
	SoldAt       *time.Time `json:"sold_at,omitempty"`
	IsWinner     bool       `gorm:"not null;index" json:"is_winner"`
	WonPrizeID   *uint      `gorm:"index" json:"won_prize_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Ticket) TableName() string {
	return "tickets"
}

// IsSold 是否已售出
func (t *Ticket) IsSold() bool {
	return t != nil && t.Status == constants.TicketStatusSold
}
