package models

import (
	"time"

	"github.com/raffle-next/internal/constants"
)

// Raffle 抽奖活动表，Capacity 创建后仅能通过奖券池重建调整
type Raffle struct {
	ID          uint       `gorm:"primarykey" json:"id"`                            // 主键
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`         // 标题
	Description string     `gorm:"type:text" json:"description"`                    // 描述
	Capacity    int        `gorm:"not null" json:"capacity"`                        // 奖券总数
	Status      string     `gorm:"type:varchar(16);index;not null" json:"status"`   // 状态（draft/active/completed/cancelled）
	TicketPrice Money      `gorm:"type:decimal(20,2);not null" json:"ticket_price"` // 单张价格
	Currency    string     `gorm:"type:varchar(8);not null" json:"currency"`        // 币种
	ActivatedAt *time.Time `json:"activated_at,omitempty"`                          // 开售时间
	ClosedAt    *time.Time `json:"closed_at,omitempty"`                             // 结束/取消时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`                                      // 更新时间
}

// TableName 指定表名
func (Raffle) TableName() string {
	return "raffles"
}

// IsActive 是否处于售卖中
func (r *Raffle) IsActive() bool {
	return r != nil && r.Status == constants.RaffleStatusActive
}
