package repository

import (
	"context"
	"errors"
	"time"

	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"

	"gorm.io/gorm"
)

// PrizeRepository 奖品数据访问接口
type PrizeRepository interface {
	Create(prize *models.Prize) error
	GetByID(id uint) (*models.Prize, error)
	ListByRaffle(raffleID uint, status string) ([]models.Prize, error)
	Unlock(prizeID uint, unlockedAt time.Time) (int64, error)
	ListUnnotified(raffleID uint) ([]models.Prize, error)
	MarkNotified(prizeID uint, at time.Time) (int64, error)
	ApplyPatch(prizeID uint, patch PrizePatch) (int64, error)
	BindWinner(prizeID, ticketID uint) (int64, error)
	IsTicketBound(ticketID uint) (bool, error)
	CountBoundByRaffle(raffleID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormPrizeRepository
	WithContext(ctx context.Context) *GormPrizeRepository
}

// GormPrizeRepository GORM 实现
type GormPrizeRepository struct {
	db *gorm.DB
}

// NewPrizeRepository 创建奖品仓库
func NewPrizeRepository(db *gorm.DB) *GormPrizeRepository {
	return &GormPrizeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPrizeRepository) WithTx(tx *gorm.DB) *GormPrizeRepository {
	if tx == nil {
		return r
	}
	return &GormPrizeRepository{db: tx}
}

// WithContext 绑定上下文
func (r *GormPrizeRepository) WithContext(ctx context.Context) *GormPrizeRepository {
	if ctx == nil {
		return r
	}
	return &GormPrizeRepository{db: r.db.WithContext(ctx)}
}

// Create 创建奖品
func (r *GormPrizeRepository) Create(prize *models.Prize) error {
	return r.db.Create(prize).Error
}

// GetByID 根据 ID 获取奖品
func (r *GormPrizeRepository) GetByID(id uint) (*models.Prize, error) {
	var prize models.Prize
	if err := r.db.First(&prize, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prize, nil
}

// ListByRaffle 获取活动下的奖品，status 为空时返回全部
func (r *GormPrizeRepository) ListByRaffle(raffleID uint, status string) ([]models.Prize, error) {
	query := r.db.Model(&models.Prize{}).Where("raffle_id = ?", raffleID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []models.Prize
	if err := query.Order("sort_order asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Unlock 条件解锁：仅 locked 且已绑定中奖券的奖品生效
func (r *GormPrizeRepository) Unlock(prizeID uint, unlockedAt time.Time) (int64, error) {
	if prizeID == 0 {
		return 0, nil
	}
	if unlockedAt.IsZero() {
		unlockedAt = time.Now()
	}
	result := r.db.Model(&models.Prize{}).
		Where("id = ? AND status = ? AND winner_ticket_id IS NOT NULL", prizeID, constants.PrizeStatusLocked).
		Updates(map[string]interface{}{
			"status":      constants.PrizeStatusUnlocked,
			"unlocked_at": unlockedAt,
			"updated_at":  unlockedAt,
		})
	return result.RowsAffected, result.Error
}

// ListUnnotified 已解锁但揭晓事实尚未投递成功的奖品
func (r *GormPrizeRepository) ListUnnotified(raffleID uint) ([]models.Prize, error) {
	var items []models.Prize
	if err := r.db.Model(&models.Prize{}).
		Where("raffle_id = ? AND status = ? AND notified_at IS NULL", raffleID, constants.PrizeStatusUnlocked).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkNotified 记录揭晓事实已投递，只在首次生效
func (r *GormPrizeRepository) MarkNotified(prizeID uint, at time.Time) (int64, error) {
	if prizeID == 0 {
		return 0, nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	result := r.db.Model(&models.Prize{}).
		Where("id = ? AND status = ? AND notified_at IS NULL", prizeID, constants.PrizeStatusUnlocked).
		Updates(map[string]interface{}{
			"notified_at": at,
			"updated_at":  at,
		})
	return result.RowsAffected, result.Error
}

// ApplyPatch 按补丁更新奖品，仅 locked 状态生效
func (r *GormPrizeRepository) ApplyPatch(prizeID uint, patch PrizePatch) (int64, error) {
	if prizeID == 0 || patch.IsEmpty() {
		return 0, nil
	}
	result := r.db.Model(&models.Prize{}).
		Where("id = ? AND status = ?", prizeID, constants.PrizeStatusLocked).
		Updates(patch.ToUpdates(time.Now()))
	return result.RowsAffected, result.Error
}

// BindWinner 为尚未绑定的奖品写入中奖券
func (r *GormPrizeRepository) BindWinner(prizeID, ticketID uint) (int64, error) {
	if prizeID == 0 || ticketID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Prize{}).
		Where("id = ? AND status = ? AND winner_ticket_id IS NULL", prizeID, constants.PrizeStatusLocked).
		Updates(map[string]interface{}{
			"winner_ticket_id": ticketID,
			"updated_at":       time.Now(),
		})
	return result.RowsAffected, result.Error
}

// IsTicketBound 奖券是否已被某个奖品绑定
func (r *GormPrizeRepository) IsTicketBound(ticketID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Prize{}).Where("winner_ticket_id = ?", ticketID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBoundByRaffle 统计活动下已绑定中奖券的奖品数
func (r *GormPrizeRepository) CountBoundByRaffle(raffleID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Prize{}).
		Where("raffle_id = ? AND winner_ticket_id IS NOT NULL", raffleID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
