package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"

	"gorm.io/gorm"
)

// RaffleRepository 抽奖活动数据访问接口
type RaffleRepository interface {
	Create(raffle *models.Raffle) error
	GetByID(id uint) (*models.Raffle, error)
	List(filter RaffleListFilter) ([]models.Raffle, int64, error)
	ListIDsByStatus(status string) ([]uint, error)
	ApplyPatch(id uint, patch RafflePatch) (int64, error)
	TransitionStatus(id uint, from []string, to string, at time.Time) (int64, error)
	UpdateCapacity(id uint, capacity int) error
	WithTx(tx *gorm.DB) *GormRaffleRepository
	WithContext(ctx context.Context) *GormRaffleRepository
}

// GormRaffleRepository GORM 实现
type GormRaffleRepository struct {
	db *gorm.DB
}

// NewRaffleRepository 创建抽奖活动仓库
func NewRaffleRepository(db *gorm.DB) *GormRaffleRepository {
	return &GormRaffleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRaffleRepository) WithTx(tx *gorm.DB) *GormRaffleRepository {
	if tx == nil {
		return r
	}
	return &GormRaffleRepository{db: tx}
}

// WithContext 绑定上下文，超时与取消作用于后续语句
func (r *GormRaffleRepository) WithContext(ctx context.Context) *GormRaffleRepository {
	if ctx == nil {
		return r
	}
	return &GormRaffleRepository{db: r.db.WithContext(ctx)}
}

// Create 创建抽奖活动
func (r *GormRaffleRepository) Create(raffle *models.Raffle) error {
	return r.db.Create(raffle).Error
}

// GetByID 根据 ID 获取抽奖活动，不存在时返回 nil
func (r *GormRaffleRepository) GetByID(id uint) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := r.db.First(&raffle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &raffle, nil
}

// List 分页查询抽奖活动
func (r *GormRaffleRepository) List(filter RaffleListFilter) ([]models.Raffle, int64, error) {
	query := r.db.Model(&models.Raffle{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title "+likeOperator(r.db)+" ?", "%"+search+"%")
	}
	return countAndFind[models.Raffle](query, filter.Page, filter.PageSize, "id desc")
}

// ListIDsByStatus 获取指定状态的活动 ID
func (r *GormRaffleRepository) ListIDsByStatus(status string) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Raffle{}).
		Where("status = ?", status).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyPatch 按补丁更新活动字段
func (r *GormRaffleRepository) ApplyPatch(id uint, patch RafflePatch) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid raffle id")
	}
	if patch.IsEmpty() {
		return 0, nil
	}
	result := r.db.Model(&models.Raffle{}).Where("id = ?", id).Updates(patch.ToUpdates(time.Now()))
	return result.RowsAffected, result.Error
}

// TransitionStatus 条件更新状态，仅当当前状态在 from 中时生效
func (r *GormRaffleRepository) TransitionStatus(id uint, from []string, to string, at time.Time) (int64, error) {
	if id == 0 || len(from) == 0 {
		return 0, nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case constants.RaffleStatusActive:
		updates["activated_at"] = at
	case constants.RaffleStatusCompleted, constants.RaffleStatusCancelled:
		updates["closed_at"] = at
	}
	result := r.db.Model(&models.Raffle{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// UpdateCapacity 更新奖券总数
func (r *GormRaffleRepository) UpdateCapacity(id uint, capacity int) error {
	return r.db.Model(&models.Raffle{}).Where("id = ?", id).Updates(map[string]interface{}{
		"capacity":   capacity,
		"updated_at": time.Now(),
	}).Error
}
