package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketRepository 奖券池数据访问接口
type TicketRepository interface {
	CreateBatch(items []models.Ticket, skipExisting bool) error
	CountByRaffle(raffleID uint) (int64, error)
	CountByStatus(raffleID uint, status string) (int64, error)
	Snapshot(raffleID uint) (PoolSnapshot, error)
	CountPurchasable(raffleID uint) (int64, error)
	ListAvailableNumbers(raffleID uint, limit int, random bool) ([]int, error)
	MarkSold(raffleID uint, numbers []int, ownerRef, allocationID string, soldAt time.Time) (int64, error)
	MarkWinner(ticketID, prizeID uint, at time.Time) (int64, error)
	GetByID(id uint) (*models.Ticket, error)
	GetByNumber(raffleID uint, number int) (*models.Ticket, error)
	CountUnboundAvailable(raffleID uint) (int64, error)
	GetUnboundAvailableAt(raffleID uint, offset int64) (*models.Ticket, error)
	CountBoundFromNumber(raffleID uint, fromNumber int) (int64, error)
	DeleteAvailableFromNumber(raffleID uint, fromNumber int) (int64, error)
	DeleteByRaffle(raffleID uint) (int64, error)
	List(filter TicketListFilter) ([]models.Ticket, int64, error)
	WithTx(tx *gorm.DB) *GormTicketRepository
	WithContext(ctx context.Context) *GormTicketRepository
}

// GormTicketRepository GORM 实现
type GormTicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository 创建奖券仓库
func NewTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTicketRepository) WithTx(tx *gorm.DB) *GormTicketRepository {
	if tx == nil {
		return r
	}
	return &GormTicketRepository{db: tx}
}

// WithContext 绑定上下文
func (r *GormTicketRepository) WithContext(ctx context.Context) *GormTicketRepository {
	if ctx == nil {
		return r
	}
	return &GormTicketRepository{db: r.db.WithContext(ctx)}
}

// CreateBatch 批量写入奖券，skipExisting 时已存在的号码被跳过
func (r *GormTicketRepository) CreateBatch(items []models.Ticket, skipExisting bool) error {
	if len(items) == 0 {
		return nil
	}
	query := r.db
	if skipExisting {
		query = query.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "raffle_id"}, {Name: "number"}},
			DoNothing: true,
		})
	}
	return query.Create(&items).Error
}

// CountByRaffle 统计活动下奖券总数
func (r *GormTicketRepository) CountByRaffle(raffleID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Ticket{}).Where("raffle_id = ?", raffleID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus 统计指定状态的奖券数量
func (r *GormTicketRepository) CountByStatus(raffleID uint, status string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Ticket{}).
		Where("raffle_id = ? AND status = ?", raffleID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// purchasableQuery 可购买的奖券：available 且未被揭晓为中奖券
func (r *GormTicketRepository) purchasableQuery(raffleID uint) *gorm.DB {
	return r.db.Model(&models.Ticket{}).
		Where("raffle_id = ? AND status = ? AND is_winner = ?", raffleID, constants.TicketStatusAvailable, false)
}

// CountPurchasable 统计仍可购买的奖券数量
func (r *GormTicketRepository) CountPurchasable(raffleID uint) (int64, error) {
	var count int64
	if err := r.purchasableQuery(raffleID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Snapshot 单条 GROUP BY 语句读取各状态数量，保证已售与总数来自同一快照
func (r *GormTicketRepository) Snapshot(raffleID uint) (PoolSnapshot, error) {
	var rows []TicketStatusCount
	if err := r.db.Model(&models.Ticket{}).
		Select("status, COUNT(*) AS total, COUNT(CASE WHEN is_winner THEN 1 END) AS winners").
		Where("raffle_id = ?", raffleID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return PoolSnapshot{}, err
	}
	var snapshot PoolSnapshot
	for _, row := range rows {
		snapshot.Total += row.Total
		snapshot.Winners += row.Winners
		switch row.Status {
		case constants.TicketStatusSold:
			snapshot.Sold += row.Total
		case constants.TicketStatusAvailable:
			snapshot.Available += row.Total
		}
	}
	return snapshot, nil
}

// ListAvailableNumbers 读取候选号码，仅作建议，最终以条件更新为准
func (r *GormTicketRepository) ListAvailableNumbers(raffleID uint, limit int, random bool) ([]int, error) {
	if limit <= 0 {
		return []int{}, nil
	}
	query := r.purchasableQuery(raffleID)
	if random {
		query = query.Order(randomOrderExpr(r.db))
	} else {
		query = query.Order("number asc")
	}
	var numbers []int
	if err := query.Limit(limit).Pluck("number", &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

// MarkSold 条件售出：只更新仍为 available 且未揭晓中奖的号码，返回实际售出数量
func (r *GormTicketRepository) MarkSold(raffleID uint, numbers []int, ownerRef, allocationID string, soldAt time.Time) (int64, error) {
	if raffleID == 0 || len(numbers) == 0 {
		return 0, nil
	}
	if soldAt.IsZero() {
		soldAt = time.Now()
	}
	result := r.db.Model(&models.Ticket{}).
		Where("raffle_id = ? AND number IN ? AND status = ? AND is_winner = ?", raffleID, numbers, constants.TicketStatusAvailable, false).
		Updates(map[string]interface{}{
			"status":        constants.TicketStatusSold,
			"owner_ref":     strings.TrimSpace(ownerRef),
			"allocation_id": allocationID,
			"sold_at":       soldAt,
			"updated_at":    soldAt,
		})
	return result.RowsAffected, result.Error
}

// MarkWinner 条件标记中奖：未中奖或已由同一奖品标记时生效
func (r *GormTicketRepository) MarkWinner(ticketID, prizeID uint, at time.Time) (int64, error) {
	if ticketID == 0 || prizeID == 0 {
		return 0, nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	result := r.db.Model(&models.Ticket{}).
		Where("id = ? AND (is_winner = ? OR won_prize_id = ?)", ticketID, false, prizeID).
		Updates(map[string]interface{}{
			"is_winner":    true,
			"won_prize_id": prizeID,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}

// GetByID 根据 ID 获取奖券
func (r *GormTicketRepository) GetByID(id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}

// GetByNumber 根据号码获取奖券
func (r *GormTicketRepository) GetByNumber(raffleID uint, number int) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.Where("raffle_id = ? AND number = ?", raffleID, number).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}

// unboundAvailableQuery 可售且未被任何奖品绑定的奖券
func (r *GormTicketRepository) unboundAvailableQuery(raffleID uint) *gorm.DB {
	bound := r.db.Model(&models.Prize{}).
		Select("winner_ticket_id").
		Where("raffle_id = ? AND winner_ticket_id IS NOT NULL", raffleID)
	return r.db.Model(&models.Ticket{}).
		Where("raffle_id = ? AND status = ? AND is_winner = ?", raffleID, constants.TicketStatusAvailable, false).
		Where("id NOT IN (?)", bound)
}

// CountUnboundAvailable 统计可绑定的候选奖券
func (r *GormTicketRepository) CountUnboundAvailable(raffleID uint) (int64, error) {
	var count int64
	if err := r.unboundAvailableQuery(raffleID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetUnboundAvailableAt 按号码顺序取第 offset 个候选奖券，不存在时返回 nil
func (r *GormTicketRepository) GetUnboundAvailableAt(raffleID uint, offset int64) (*models.Ticket, error) {
	if offset < 0 {
		return nil, nil
	}
	var items []models.Ticket
	if err := r.unboundAvailableQuery(raffleID).
		Order("number asc").
		Offset(int(offset)).
		Limit(1).
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// CountBoundFromNumber 统计号码 >= fromNumber 且已被奖品绑定的奖券
func (r *GormTicketRepository) CountBoundFromNumber(raffleID uint, fromNumber int) (int64, error) {
	tickets := r.db.Model(&models.Ticket{}).
		Select("id").
		Where("raffle_id = ? AND number >= ?", raffleID, fromNumber)
	var count int64
	if err := r.db.Model(&models.Prize{}).
		Where("raffle_id = ? AND winner_ticket_id IN (?)", raffleID, tickets).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteAvailableFromNumber 删除号码 >= fromNumber 的可售奖券
func (r *GormTicketRepository) DeleteAvailableFromNumber(raffleID uint, fromNumber int) (int64, error) {
	result := r.db.
		Where("raffle_id = ? AND number >= ? AND status = ?", raffleID, fromNumber, constants.TicketStatusAvailable).
		Delete(&models.Ticket{})
	return result.RowsAffected, result.Error
}

// DeleteByRaffle 删除活动下全部奖券
func (r *GormTicketRepository) DeleteByRaffle(raffleID uint) (int64, error) {
	if raffleID == 0 {
		return 0, nil
	}
	result := r.db.Where("raffle_id = ?", raffleID).Delete(&models.Ticket{})
	return result.RowsAffected, result.Error
}

// List 分页查询奖券
func (r *GormTicketRepository) List(filter TicketListFilter) ([]models.Ticket, int64, error) {
	if filter.RaffleID == 0 {
		return nil, 0, errors.New("invalid raffle id")
	}
	query := r.db.Model(&models.Ticket{}).Where("raffle_id = ?", filter.RaffleID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if owner := strings.TrimSpace(filter.OwnerRef); owner != "" {
		query = query.Where("owner_ref = ?", owner)
	}
	if filter.OnlyWinners {
		query = query.Where("is_winner = ?", true)
	}
	return countAndFind[models.Ticket](query, filter.Page, filter.PageSize, "number asc")
}
