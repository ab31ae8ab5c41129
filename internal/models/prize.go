package models

import (
	"time"

	"github.com/raffle-next/internal/constants"

	"github.com/shopspring/decimal"
)

// Prize 奖品表
// 解锁条件二选一：销售百分比或已售张数。
// WinnerTicketID 在创建时绑定且不可更改，唯一索引保证同一张奖券不会被多个奖品绑定。
// 揭晓事实至少投递一次：解锁后 NotifiedAt 为空的奖品会在下次扫描时重新发布。
type Prize struct {
	ID               uint             `gorm:"primarykey" json:"id"`
	RaffleID         uint             `gorm:"index;not null" json:"raffle_id"`
	Name             string           `gorm:"type:varchar(255);not null" json:"name"`
	Description      string           `gorm:"type:text" json:"description"`
	ThresholdPercent *decimal.Decimal `gorm:"type:decimal(7,4)" json:"threshold_percent,omitempty"`
	ThresholdCount   *int             `json:"threshold_count,omitempty"`
	Status           string           `gorm:"type:varchar(16);index;not null" json:"status"`
	WinnerTicketID   *uint            `gorm:"uniqueIndex" json:"-"`
	UnlockedAt       *time.Time       `json:"unlocked_at,omitempty"`
	NotifiedAt       *time.Time       `gorm:"index" json:"notified_at,omitempty"` // 揭晓事实成功投递的时间，为空时开奖扫描会重新投递
	SortOrder        int              `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (Prize) TableName() string {
	return "prizes"
}

// IsLocked 是否仍未解锁
func (p *Prize) IsLocked() bool {
	return p != nil && p.Status == constants.PrizeStatusLocked
}

// ThresholdType 返回解锁条件类型，两者都未设置时返回空串
func (p *Prize) ThresholdType() string {
	if p == nil {
		return ""
	}
	if p.ThresholdPercent != nil {
		return constants.PrizeThresholdPercentage
	}
	if p.ThresholdCount != nil {
		return constants.PrizeThresholdCount
	}
	return ""
}
