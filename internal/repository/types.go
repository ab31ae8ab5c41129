package repository

import (
	"strings"
	"time"

	"github.com/raffle-next/internal/models"

	"github.com/shopspring/decimal"
)

// RaffleListFilter 查询抽奖活动列表的过滤条件
type RaffleListFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}

// TicketListFilter 查询奖券列表的过滤条件
type TicketListFilter struct {
	Page        int
	PageSize    int
	RaffleID    uint
	Status      string
	OwnerRef    string
	OnlyWinners bool
}

// TicketStatusCount 按状态聚合的奖券数量
type TicketStatusCount struct {
	Status  string
	Total   int64
	Winners int64
}

// PoolSnapshot 单条语句读出的奖券池计数
type PoolSnapshot struct {
	Total     int64
	Sold      int64
	Available int64
	Winners   int64
}

// RafflePatch 抽奖活动部分更新，nil 字段保持不变
type RafflePatch struct {
	Title       *string
	Description *string
	TicketPrice *decimal.Decimal
	Currency    *string
}

// IsEmpty 是否没有任何字段需要更新
func (p RafflePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.TicketPrice == nil && p.Currency == nil
}

// ToUpdates 转换为 gorm Updates 使用的列映射
func (p RafflePatch) ToUpdates(now time.Time) map[string]interface{} {
	updates := map[string]interface{}{"updated_at": now}
	if p.Title != nil {
		updates["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.TicketPrice != nil {
		updates["ticket_price"] = models.NewMoneyFromDecimal(*p.TicketPrice)
	}
	if p.Currency != nil {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	return updates
}

// PrizePatch 奖品部分更新，中奖绑定不在可更新范围内
type PrizePatch struct {
	Name             *string
	Description      *string
	ThresholdPercent *decimal.Decimal
	ThresholdCount   *int
	SortOrder        *int
}

// IsEmpty 是否没有任何字段需要更新
func (p PrizePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.ThresholdPercent == nil && p.ThresholdCount == nil && p.SortOrder == nil
}

// ToUpdates 转换为列映射；设置一种阈值时清空另一种，保证二选一
func (p PrizePatch) ToUpdates(now time.Time) map[string]interface{} {
	updates := map[string]interface{}{"updated_at": now}
	if p.Name != nil {
		updates["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.ThresholdPercent != nil {
		updates["threshold_percent"] = *p.ThresholdPercent
		updates["threshold_count"] = nil
	}
	if p.ThresholdCount != nil {
		updates["threshold_count"] = *p.ThresholdCount
		updates["threshold_percent"] = nil
	}
	if p.SortOrder != nil {
		updates["sort_order"] = *p.SortOrder
	}
	return updates
}
