package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/queue"
	"github.com/raffle-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationService 售券服务：随机数量购买与指定号码购买
type AllocationService struct {
	raffleRepo  repository.RaffleRepository
	ticketRepo  repository.TicketRepository
	pool        *TicketPool
	revelation  *RevelationScheduler
	queueClient *queue.Client
	cfg         config.RaffleConfig
}

// NewAllocationService 创建售券服务
func NewAllocationService(raffleRepo repository.RaffleRepository, ticketRepo repository.TicketRepository, pool *TicketPool, revelation *RevelationScheduler, queueClient *queue.Client, cfg config.RaffleConfig) *AllocationService {
	return &AllocationService{
		raffleRepo:  raffleRepo,
		ticketRepo:  ticketRepo,
		pool:        pool,
		revelation:  revelation,
		queueClient: queueClient,
		cfg:         cfg.Normalize(),
	}
}

// AllocateTicketsInput 购买输入，Quantity 与 Numbers 二选一
type AllocateTicketsInput struct {
	RaffleID uint
	Quantity int
	Numbers  []int
	OwnerRef string
}

// AllocationResult 购买结果
type AllocationResult struct {
	AllocationID  string            `json:"allocation_id"`
	RaffleID      uint              `json:"raffle_id"`
	TicketNumbers []int             `json:"ticket_numbers"`
	TotalAmount   models.Money      `json:"total_amount"`
	Currency      string            `json:"currency"`
	Revelation    *RevelationResult `json:"revelation,omitempty"`
}

// AllocateTickets 售出奖券。提交前取消则不产生任何售出；提交后售出不可撤销，
// 开奖失败只记录日志并延迟重新扫描。
func (s *AllocationService) AllocateTickets(ctx context.Context, input AllocateTicketsInput) (*AllocationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	explicit := len(input.Numbers) > 0
	if explicit && input.Quantity > 0 && input.Quantity != len(input.Numbers) {
		return nil, ErrInvalidQuantity
	}
	if !explicit && (input.Quantity <= 0 || input.Quantity > s.cfg.MaxTicketsPerPurchase) {
		return nil, ErrInvalidQuantity
	}
	if explicit && len(input.Numbers) > s.cfg.MaxTicketsPerPurchase {
		return nil, ErrInvalidQuantity
	}

	raffle, err := s.loadActiveRaffle(ctx, input.RaffleID)
	if err != nil {
		return nil, err
	}

	ownerRef := strings.TrimSpace(input.OwnerRef)
	allocationID := uuid.NewString()
	var numbers []int
	if explicit {
		if err := validateTicketNumbers(input.Numbers, raffle.Capacity); err != nil {
			return nil, err
		}
		numbers = append([]int(nil), input.Numbers...)
		err = s.claim(ctx, raffle.ID, func(tx *gorm.DB) ([]int, error) {
			return numbers, nil
		}, ownerRef, allocationID)
	} else {
		numbers, err = s.claimQuantity(ctx, raffle.ID, input.Quantity, ownerRef, allocationID)
	}
	if err != nil {
		return nil, err
	}
	sort.Ints(numbers)

	result := &AllocationResult{
		AllocationID:  allocationID,
		RaffleID:      raffle.ID,
		TicketNumbers: numbers,
		TotalAmount:   raffle.TicketPrice.Times(len(numbers)),
		Currency:      raffle.Currency,
	}
	logger.Infow("allocation_committed",
		"raffle_id", raffle.ID,
		"allocation_id", allocationID,
		"owner_ref", ownerRef,
		"count", len(numbers),
	)
	result.Revelation = s.afterSale(ctx, raffle.ID)
	return result, nil
}

func (s *AllocationService) loadActiveRaffle(ctx context.Context, raffleID uint) (*models.Raffle, error) {
	if raffleID == 0 {
		return nil, ErrRaffleNotFound
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	raffle, err := s.raffleRepo.WithContext(sctx).GetByID(raffleID)
	if err != nil {
		return nil, wrapStorageError(err)
	}
	if raffle == nil {
		return nil, ErrRaffleNotFound
	}
	if !raffle.IsActive() {
		return nil, ErrRaffleNotActive
	}
	return raffle, nil
}

// claimQuantity 选号为建议性读取，条件更新失败时重新选号，超过重试次数视为库存不足
func (s *AllocationService) claimQuantity(ctx context.Context, raffleID uint, quantity int, ownerRef, allocationID string) ([]int, error) {
	random := s.cfg.SelectionMode == constants.SelectionModeRandom
	var claimed []int
	for attempt := 1; attempt <= s.cfg.AllocationMaxRetries; attempt++ {
		err := s.claim(ctx, raffleID, func(tx *gorm.DB) ([]int, error) {
			repo := s.ticketRepo.WithTx(tx)
			available, err := repo.CountPurchasable(raffleID)
			if err != nil {
				return nil, err
			}
			if available < int64(quantity) {
				return nil, ErrInsufficientInventory
			}
			candidates, err := repo.ListAvailableNumbers(raffleID, quantity, random)
			if err != nil {
				return nil, err
			}
			if len(candidates) < quantity {
				return nil, ErrInsufficientInventory
			}
			claimed = candidates
			return candidates, nil
		}, ownerRef, allocationID)
		if err == nil {
			return claimed, nil
		}
		if !errors.Is(err, ErrTicketConflict) {
			return nil, err
		}
		logger.Warnw("allocation_conflict_retry",
			"raffle_id", raffleID,
			"allocation_id", allocationID,
			"attempt", attempt,
			"max_retries", s.cfg.AllocationMaxRetries,
		)
	}
	return nil, ErrInsufficientInventory
}

// claim 单事务内复核活动状态后条件售出 pick 选出的号码
func (s *AllocationService) claim(ctx context.Context, raffleID uint, pick func(tx *gorm.DB) ([]int, error), ownerRef, allocationID string) error {
	return runInTx(ctx, s.cfg.StorageTimeout(), func(tx *gorm.DB) error {
		raffle, err := s.raffleRepo.WithTx(tx).GetByID(raffleID)
		if err != nil {
			return err
		}
		if raffle == nil {
			return ErrRaffleNotFound
		}
		if !raffle.IsActive() {
			return ErrRaffleNotActive
		}
		numbers, err := pick(tx)
		if err != nil {
			return err
		}
		return s.pool.MarkSold(ctx, tx, raffleID, numbers, ownerRef, allocationID)
	})
}

// afterSale 售出已提交，后续步骤使用脱离调用方取消的上下文
func (s *AllocationService) afterSale(ctx context.Context, raffleID uint) *RevelationResult {
	detached := context.WithoutCancel(ctx)
	if err := cache.InvalidateRaffleStats(detached, raffleID); err != nil {
		logger.Warnw("allocation_stats_invalidate_failed", "raffle_id", raffleID, "error", err)
	}
	if s.revelation == nil {
		return nil
	}
	result, err := s.revelation.Reveal(detached, raffleID)
	if err != nil {
		logger.Errorw("allocation_revelation_failed", "raffle_id", raffleID, "error", err)
		delay := time.Duration(s.cfg.RescanRetryDelaySeconds) * time.Second
		if qerr := s.queueClient.EnqueueRaffleRescan(queue.RaffleRescanPayload{
			RaffleID: raffleID,
			Reason:   "allocation_revelation_failed",
		}, delay); qerr != nil {
			logger.Errorw("allocation_rescan_enqueue_failed", "raffle_id", raffleID, "error", qerr)
		}
	}
	return result
}

// validateTicketNumbers 号码须互不重复且位于 [0, capacity)
func validateTicketNumbers(numbers []int, capacity int) error {
	if hasDuplicateNumbers(numbers) {
		return ErrTicketNumberInvalid
	}
	for _, n := range numbers {
		if n < 0 || n >= capacity {
			return ErrTicketNumberInvalid
		}
	}
	return nil
}
