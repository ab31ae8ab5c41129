package service

import (
	"context"
	"strings"
	"time"

	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// raffleTransitions 允许的状态流转
var raffleTransitions = map[string][]string{
	constants.RaffleStatusDraft:  {constants.RaffleStatusActive, constants.RaffleStatusCancelled},
	constants.RaffleStatusActive: {constants.RaffleStatusCompleted, constants.RaffleStatusCancelled},
}

// RaffleService 抽奖活动管理服务
type RaffleService struct {
	raffleRepo repository.RaffleRepository
	ticketRepo repository.TicketRepository
	pool       *TicketPool
	revelation *RevelationScheduler
	cfg        config.RaffleConfig
}

// NewRaffleService 创建活动服务
func NewRaffleService(raffleRepo repository.RaffleRepository, ticketRepo repository.TicketRepository, pool *TicketPool, revelation *RevelationScheduler, cfg config.RaffleConfig) *RaffleService {
	return &RaffleService{
		raffleRepo: raffleRepo,
		ticketRepo: ticketRepo,
		pool:       pool,
		revelation: revelation,
		cfg:        cfg.Normalize(),
	}
}

// CreateRaffleInput 创建活动输入
type CreateRaffleInput struct {
	Title       string
	Description string
	Capacity    int
	TicketPrice decimal.Decimal
	Currency    string
}

// CreateRaffle 同一事务内创建活动与完整奖券池
func (s *RaffleService) CreateRaffle(ctx context.Context, input CreateRaffleInput) (*models.Raffle, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || input.TicketPrice.IsNegative() {
		return nil, ErrRaffleInvalid
	}
	if err := s.pool.ValidateCapacity(input.Capacity); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}
	raffle := &models.Raffle{
		Title:       title,
		Description: input.Description,
		Capacity:    input.Capacity,
		Status:      constants.RaffleStatusDraft,
		TicketPrice: models.NewMoneyFromDecimal(input.TicketPrice),
		Currency:    currency,
	}
	err := runInTx(ctx, s.pool.poolTimeout(input.Capacity), func(tx *gorm.DB) error {
		if err := s.raffleRepo.WithTx(tx).Create(raffle); err != nil {
			return err
		}
		return s.pool.createPoolTx(tx, raffle.ID, raffle.Capacity, false)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("raffle_created", "raffle_id", raffle.ID, "capacity", raffle.Capacity)
	return raffle, nil
}

// GetRaffle 获取活动
func (s *RaffleService) GetRaffle(ctx context.Context, id uint) (*models.Raffle, error) {
	if id == 0 {
		return nil, ErrRaffleNotFound
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	raffle, err := s.raffleRepo.WithContext(sctx).GetByID(id)
	if err != nil {
		return nil, wrapStorageError(err)
	}
	if raffle == nil {
		return nil, ErrRaffleNotFound
	}
	return raffle, nil
}

// ListRaffles 分页查询活动
func (s *RaffleService) ListRaffles(ctx context.Context, filter repository.RaffleListFilter) ([]models.Raffle, int64, error) {
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	items, total, err := s.raffleRepo.WithContext(sctx).List(filter)
	if err != nil {
		return nil, 0, wrapStorageError(err)
	}
	return items, total, nil
}

// UpdateRaffle 按补丁更新活动基础信息
func (s *RaffleService) UpdateRaffle(ctx context.Context, id uint, patch repository.RafflePatch) (*models.Raffle, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrRaffleInvalid
	}
	if patch.TicketPrice != nil && patch.TicketPrice.IsNegative() {
		return nil, ErrRaffleInvalid
	}
	raffle, err := s.GetRaffle(ctx, id)
	if err != nil {
		return nil, err
	}
	if isRaffleClosed(raffle.Status) {
		return nil, ErrRaffleStatusInvalid
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	if _, err := s.raffleRepo.WithContext(sctx).ApplyPatch(id, patch); err != nil {
		return nil, wrapStorageError(err)
	}
	return s.GetRaffle(ctx, id)
}

// ChangeStatus 状态流转：draft→active|cancelled，active→completed|cancelled。
// 完结时执行最后一次开奖扫描。
func (s *RaffleService) ChangeStatus(ctx context.Context, id uint, status string) (*models.Raffle, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	raffle, err := s.GetRaffle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(raffle.Status, status) {
		return nil, ErrRaffleStatusInvalid
	}
	if status == constants.RaffleStatusActive {
		sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
		total, err := s.ticketRepo.WithContext(sctx).CountByRaffle(id)
		cancel()
		if err != nil {
			return nil, wrapStorageError(err)
		}
		if total != int64(raffle.Capacity) {
			return nil, ErrTicketPoolIncomplete
		}
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	affected, err := s.raffleRepo.WithContext(sctx).TransitionStatus(id, []string{raffle.Status}, status, time.Now())
	cancel()
	if err != nil {
		return nil, wrapStorageError(err)
	}
	if affected == 0 {
		return nil, ErrRaffleStatusInvalid
	}
	logger.Infow("raffle_status_changed", "raffle_id", id, "from", raffle.Status, "to", status)
	if status == constants.RaffleStatusCompleted && s.revelation != nil {
		if _, err := s.revelation.Reveal(context.WithoutCancel(ctx), id); err != nil {
			logger.Errorw("raffle_final_revelation_failed", "raffle_id", id, "error", err)
		}
	}
	return s.GetRaffle(ctx, id)
}

func transitionAllowed(from, to string) bool {
	for _, next := range raffleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateTicketPool 为活动按其总数生成奖券池，resume 时补齐缺失号码
func (s *RaffleService) CreateTicketPool(ctx context.Context, id uint, resume bool) error {
	raffle, err := s.GetRaffle(ctx, id)
	if err != nil {
		return err
	}
	if isRaffleClosed(raffle.Status) {
		return ErrRaffleStatusInvalid
	}
	if err := s.pool.CreatePool(ctx, id, raffle.Capacity, resume); err != nil {
		return err
	}
	s.invalidateStats(ctx, id)
	return nil
}

// RegenerateTicketPool 调整奖券池大小
func (s *RaffleService) RegenerateTicketPool(ctx context.Context, id uint, capacity int) (*models.Raffle, error) {
	if err := s.pool.Regenerate(ctx, id, capacity); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, id)
	return s.GetRaffle(ctx, id)
}

// PurgeTicketPool 清空奖券池
func (s *RaffleService) PurgeTicketPool(ctx context.Context, id uint) (int64, error) {
	deleted, err := s.pool.Purge(ctx, id)
	if err != nil {
		return 0, err
	}
	s.invalidateStats(ctx, id)
	return deleted, nil
}

func (s *RaffleService) invalidateStats(ctx context.Context, id uint) {
	if err := cache.InvalidateRaffleStats(context.WithoutCancel(ctx), id); err != nil {
		logger.Warnw("raffle_stats_invalidate_failed", "raffle_id", id, "error", err)
	}
}
