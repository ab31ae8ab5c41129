package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// TicketPool 奖券池服务：生成、计数、条件售出与中奖标记
type TicketPool struct {
	raffleRepo repository.RaffleRepository
	ticketRepo repository.TicketRepository
	prizeRepo  repository.PrizeRepository
	cfg        config.RaffleConfig
}

// NewTicketPool 创建奖券池服务
func NewTicketPool(raffleRepo repository.RaffleRepository, ticketRepo repository.TicketRepository, prizeRepo repository.PrizeRepository, cfg config.RaffleConfig) *TicketPool {
	return &TicketPool{
		raffleRepo: raffleRepo,
		ticketRepo: ticketRepo,
		prizeRepo:  prizeRepo,
		cfg:        cfg.Normalize(),
	}
}

// PoolSnapshot 奖券池计数快照
type PoolSnapshot struct {
	RaffleID   uint            `json:"raffle_id"`
	Total      int64           `json:"total"`
	Sold       int64           `json:"sold"`
	Available  int64           `json:"available"`
	Winners    int64           `json:"winners"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ValidateCapacity 校验奖券总数
func (p *TicketPool) ValidateCapacity(capacity int) error {
	if capacity <= 0 || capacity > p.cfg.MaxCapacity {
		return ErrCapacityInvalid
	}
	return nil
}

// poolTimeout 按批次数放大单次存储超时
func (p *TicketPool) poolTimeout(capacity int) time.Duration {
	batches := (capacity + p.cfg.PoolBatchSize - 1) / p.cfg.PoolBatchSize
	if batches < 1 {
		batches = 1
	}
	return p.cfg.StorageTimeout() * time.Duration(batches)
}

// CreatePool 生成号码 [0, capacity) 的奖券；resume 时跳过已存在的号码
func (p *TicketPool) CreatePool(ctx context.Context, raffleID uint, capacity int, resume bool) error {
	if err := p.ValidateCapacity(capacity); err != nil {
		return err
	}
	err := runInTx(ctx, p.poolTimeout(capacity), func(tx *gorm.DB) error {
		raffle, err := p.raffleRepo.WithTx(tx).GetByID(raffleID)
		if err != nil {
			return err
		}
		if raffle == nil {
			return ErrRaffleNotFound
		}
		return p.createPoolTx(tx, raffleID, capacity, resume)
	})
	if err != nil {
		return err
	}
	logger.Infow("ticket_pool_created", "raffle_id", raffleID, "capacity", capacity, "resume", resume)
	return nil
}

func (p *TicketPool) createPoolTx(tx *gorm.DB, raffleID uint, capacity int, resume bool) error {
	repo := p.ticketRepo.WithTx(tx)
	existing, err := repo.CountByRaffle(raffleID)
	if err != nil {
		return err
	}
	if existing > 0 && !resume {
		return ErrTicketPoolExists
	}
	return p.fillRange(repo, raffleID, capacity, existing > 0)
}

// fillRange 分批写入号码 [0, capacity)
func (p *TicketPool) fillRange(repo repository.TicketRepository, raffleID uint, capacity int, skipExisting bool) error {
	batchSize := p.cfg.PoolBatchSize
	for start := 0; start < capacity; start += batchSize {
		end := start + batchSize
		if end > capacity {
			end = capacity
		}
		items := make([]models.Ticket, 0, end-start)
		for number := start; number < end; number++ {
			items = append(items, models.Ticket{
				RaffleID: raffleID,
				Number:   number,
				Status:   constants.TicketStatusAvailable,
			})
		}
		if err := repo.CreateBatch(items, skipExisting); err != nil {
			return err
		}
	}
	return nil
}

// CountByState 统计指定状态的奖券数量
func (p *TicketPool) CountByState(ctx context.Context, raffleID uint, state string) (int64, error) {
	if state != constants.TicketStatusAvailable && state != constants.TicketStatusSold {
		return 0, fmt.Errorf("unknown ticket state %q", state)
	}
	sctx, cancel := withStorageTimeout(ctx, p.cfg.StorageTimeout())
	defer cancel()
	count, err := p.ticketRepo.WithContext(sctx).CountByStatus(raffleID, state)
	return count, wrapStorageError(err)
}

// Snapshot 单条语句读取售出与总数，二者来自同一时刻
func (p *TicketPool) Snapshot(ctx context.Context, raffleID uint) (*PoolSnapshot, error) {
	sctx, cancel := withStorageTimeout(ctx, p.cfg.StorageTimeout())
	defer cancel()
	counts, err := p.ticketRepo.WithContext(sctx).Snapshot(raffleID)
	if err != nil {
		return nil, wrapStorageError(err)
	}
	return &PoolSnapshot{
		RaffleID:   raffleID,
		Total:      counts.Total,
		Sold:       counts.Sold,
		Available:  counts.Available,
		Winners:    counts.Winners,
		Percentage: salesPercentage(counts.Sold, counts.Total),
	}, nil
}

// salesPercentage 售出百分比，总数为 0 时为 0
func salesPercentage(sold, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sold).Mul(hundred).DivRound(decimal.NewFromInt(total), 4)
}

// MarkSold 条件售出号码，任一号码已不可售则整体回滚并返回 ErrTicketConflict。
// tx 为空时自行开启事务。
func (p *TicketPool) MarkSold(ctx context.Context, tx *gorm.DB, raffleID uint, numbers []int, ownerRef, allocationID string) error {
	if len(numbers) == 0 {
		return ErrInvalidQuantity
	}
	if hasDuplicateNumbers(numbers) {
		return ErrTicketNumberInvalid
	}
	if tx == nil {
		return runInTx(ctx, p.cfg.StorageTimeout(), func(inner *gorm.DB) error {
			return p.MarkSold(ctx, inner, raffleID, numbers, ownerRef, allocationID)
		})
	}
	affected, err := p.ticketRepo.WithTx(tx).MarkSold(raffleID, numbers, ownerRef, allocationID, time.Now())
	if err != nil {
		return err
	}
	if affected != int64(len(numbers)) {
		return ErrTicketConflict
	}
	return nil
}

// MarkWinner 标记中奖券；同一奖品重复标记视为成功，已中其他奖品返回 ErrAlreadyWinner。
// tx 为空时自行开启事务。
func (p *TicketPool) MarkWinner(ctx context.Context, tx *gorm.DB, ticketID, prizeID uint) error {
	if tx == nil {
		return runInTx(ctx, p.cfg.StorageTimeout(), func(inner *gorm.DB) error {
			return p.MarkWinner(ctx, inner, ticketID, prizeID)
		})
	}
	repo := p.ticketRepo.WithTx(tx)
	affected, err := repo.MarkWinner(ticketID, prizeID, time.Now())
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	ticket, err := repo.GetByID(ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}
	return ErrAlreadyWinner
}

// Regenerate 调整奖券池大小：仅在无售出时允许，删除超出范围的号码并补齐缺失号码
func (p *TicketPool) Regenerate(ctx context.Context, raffleID uint, newCapacity int) error {
	if err := p.ValidateCapacity(newCapacity); err != nil {
		return err
	}
	err := runInTx(ctx, p.poolTimeout(newCapacity), func(tx *gorm.DB) error {
		raffle, err := p.raffleRepo.WithTx(tx).GetByID(raffleID)
		if err != nil {
			return err
		}
		if raffle == nil {
			return ErrRaffleNotFound
		}
		if isRaffleClosed(raffle.Status) {
			return ErrRaffleStatusInvalid
		}
		repo := p.ticketRepo.WithTx(tx)
		sold, err := repo.CountByStatus(raffleID, constants.TicketStatusSold)
		if err != nil {
			return err
		}
		if sold > 0 {
			return ErrTicketPoolHasSales
		}
		bound, err := repo.CountBoundFromNumber(raffleID, newCapacity)
		if err != nil {
			return err
		}
		if bound > 0 {
			return ErrTicketPoolHasWinners
		}
		prizes, err := p.prizeRepo.WithTx(tx).ListByRaffle(raffleID, "")
		if err != nil {
			return err
		}
		for i := range prizes {
			if prizes[i].ThresholdCount != nil && *prizes[i].ThresholdCount > newCapacity {
				return ErrPrizeThresholdInvalid
			}
		}
		if _, err := repo.DeleteAvailableFromNumber(raffleID, newCapacity); err != nil {
			return err
		}
		remaining, err := repo.CountByRaffle(raffleID)
		if err != nil {
			return err
		}
		if remaining < int64(newCapacity) {
			if err := p.fillRange(repo, raffleID, newCapacity, remaining > 0); err != nil {
				return err
			}
		}
		return p.raffleRepo.WithTx(tx).UpdateCapacity(raffleID, newCapacity)
	})
	if err != nil {
		return err
	}
	logger.Infow("ticket_pool_regenerated", "raffle_id", raffleID, "capacity", newCapacity)
	return nil
}

// Purge 清空奖券池，要求无售出且无绑定中奖券，活动须处于草稿或已取消
func (p *TicketPool) Purge(ctx context.Context, raffleID uint) (int64, error) {
	var deleted int64
	err := runInTx(ctx, p.cfg.StorageTimeout(), func(tx *gorm.DB) error {
		raffle, err := p.raffleRepo.WithTx(tx).GetByID(raffleID)
		if err != nil {
			return err
		}
		if raffle == nil {
			return ErrRaffleNotFound
		}
		if raffle.Status != constants.RaffleStatusDraft && raffle.Status != constants.RaffleStatusCancelled {
			return ErrRaffleStatusInvalid
		}
		repo := p.ticketRepo.WithTx(tx)
		sold, err := repo.CountByStatus(raffleID, constants.TicketStatusSold)
		if err != nil {
			return err
		}
		if sold > 0 {
			return ErrTicketPoolHasSales
		}
		bound, err := p.prizeRepo.WithTx(tx).CountBoundByRaffle(raffleID)
		if err != nil {
			return err
		}
		if bound > 0 {
			return ErrTicketPoolHasWinners
		}
		deleted, err = repo.DeleteByRaffle(raffleID)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Infow("ticket_pool_purged", "raffle_id", raffleID, "deleted", deleted)
	return deleted, nil
}

// ListTickets 后台分页查询奖券
func (p *TicketPool) ListTickets(ctx context.Context, filter repository.TicketListFilter) ([]models.Ticket, int64, error) {
	sctx, cancel := withStorageTimeout(ctx, p.cfg.StorageTimeout())
	defer cancel()
	items, total, err := p.ticketRepo.WithContext(sctx).List(filter)
	if err != nil {
		return nil, 0, wrapStorageError(err)
	}
	return items, total, nil
}

func hasDuplicateNumbers(numbers []int) bool {
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

func isRaffleClosed(status string) bool {
	return status == constants.RaffleStatusCompleted || status == constants.RaffleStatusCancelled
}
