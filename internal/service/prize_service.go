package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxWinnerBindAttempts = 3

// PrizeService 奖品管理服务
type PrizeService struct {
	raffleRepo repository.RaffleRepository
	ticketRepo repository.TicketRepository
	prizeRepo  repository.PrizeRepository
	binder     *WinnerBinder
	revelation *RevelationScheduler
	cfg        config.RaffleConfig
}

// NewPrizeService 创建奖品服务
func NewPrizeService(raffleRepo repository.RaffleRepository, ticketRepo repository.TicketRepository, prizeRepo repository.PrizeRepository, binder *WinnerBinder, revelation *RevelationScheduler, cfg config.RaffleConfig) *PrizeService {
	return &PrizeService{
		raffleRepo: raffleRepo,
		ticketRepo: ticketRepo,
		prizeRepo:  prizeRepo,
		binder:     binder,
		revelation: revelation,
		cfg:        cfg.Normalize(),
	}
}

// CreatePrizeInput 创建奖品输入，解锁条件二选一
type CreatePrizeInput struct {
	RaffleID         uint
	Name             string
	Description      string
	ThresholdPercent *decimal.Decimal
	ThresholdCount   *int
	SortOrder        int
	AllowUnbound     bool
}

// CreatePrizeResult 创建结果；WinnerBound 为 false 表示需后续手动指定中奖券
type CreatePrizeResult struct {
	Prize       *models.Prize `json:"prize"`
	WinnerBound bool          `json:"winner_bound"`
}

// PrizeView 奖品展示视图
type PrizeView struct {
	ID                  uint             `json:"id"`
	RaffleID            uint             `json:"raffle_id"`
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	ThresholdType       string           `json:"threshold_type"`
	ThresholdPercent    *decimal.Decimal `json:"threshold_percent,omitempty"`
	ThresholdCount      *int             `json:"threshold_count,omitempty"`
	Status              string           `json:"status"`
	UnlockedAt          *time.Time       `json:"unlocked_at,omitempty"`
	WinnerBound         bool             `json:"winner_bound"`
	WinningTicketNumber *int             `json:"winning_ticket_number,omitempty"`
	WinnerOwnerRef      string           `json:"winner_owner_ref,omitempty"`
}

// validateThreshold 百分比 (0,100]，张数 [1,capacity]
func validateThreshold(percent *decimal.Decimal, count *int, capacity int) error {
	if (percent == nil) == (count == nil) {
		return ErrPrizeThresholdInvalid
	}
	if percent != nil {
		if !percent.IsPositive() || percent.GreaterThan(hundred) {
			return ErrPrizeThresholdInvalid
		}
		return nil
	}
	if *count < 1 || *count > capacity {
		return ErrPrizeThresholdInvalid
	}
	return nil
}

// CreatePrize 创建奖品并随机绑定中奖券。绑定与写入在同一事务内，
// 并发绑定到同一奖券时由唯一索引拒绝并重试。
func (s *PrizeService) CreatePrize(ctx context.Context, input CreatePrizeInput) (*CreatePrizeResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrPrizeInvalid
	}
	raffle, err := s.loadRaffle(ctx, input.RaffleID)
	if err != nil {
		return nil, err
	}
	if isRaffleClosed(raffle.Status) {
		return nil, ErrRaffleStatusInvalid
	}
	if err := validateThreshold(input.ThresholdPercent, input.ThresholdCount, raffle.Capacity); err != nil {
		return nil, err
	}

	var result *CreatePrizeResult
	for attempt := 1; attempt <= maxWinnerBindAttempts; attempt++ {
		err = runInTx(ctx, s.cfg.StorageTimeout(), func(tx *gorm.DB) error {
			prize := &models.Prize{
				RaffleID:         raffle.ID,
				Name:             name,
				Description:      input.Description,
				ThresholdPercent: input.ThresholdPercent,
				ThresholdCount:   input.ThresholdCount,
				Status:           constants.PrizeStatusLocked,
				SortOrder:        input.SortOrder,
			}
			ticket, err := s.binder.Bind(tx, raffle.ID)
			switch {
			case err == nil:
				prize.WinnerTicketID = &ticket.ID
			case errors.Is(err, ErrNoTicketsAvailable) && input.AllowUnbound:
				logger.Warnw("prize_created_without_winner", "raffle_id", raffle.ID, "prize_name", name)
			default:
				return err
			}
			if err := s.prizeRepo.WithTx(tx).Create(prize); err != nil {
				return err
			}
			result = &CreatePrizeResult{Prize: prize, WinnerBound: prize.WinnerTicketID != nil}
			return nil
		})
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		logger.Warnw("prize_winner_bind_collision", "raffle_id", raffle.ID, "attempt", attempt)
	}
	if err != nil {
		return nil, ErrTicketConflict
	}
	s.revealAfterChange(ctx, raffle)
	return result, nil
}

// AssignWinner 为未绑定的奖品手动指定中奖券，只能选择尚未售出的奖券
func (s *PrizeService) AssignWinner(ctx context.Context, prizeID uint, ticketNumber int) (*models.Prize, error) {
	var prize *models.Prize
	err := runInTx(ctx, s.cfg.StorageTimeout(), func(tx *gorm.DB) error {
		prizeRepo := s.prizeRepo.WithTx(tx)
		current, err := prizeRepo.GetByID(prizeID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPrizeNotFound
		}
		if !current.IsLocked() {
			return ErrPrizeLocked
		}
		if current.WinnerTicketID != nil {
			return ErrPrizeWinnerBound
		}
		ticket, err := s.ticketRepo.WithTx(tx).GetByNumber(current.RaffleID, ticketNumber)
		if err != nil {
			return err
		}
		if ticket == nil {
			return ErrTicketNotFound
		}
		if ticket.IsSold() {
			return ErrTicketNotAvailable
		}
		bound, err := prizeRepo.IsTicketBound(ticket.ID)
		if err != nil {
			return err
		}
		if bound || ticket.IsWinner {
			return ErrAlreadyWinner
		}
		affected, err := prizeRepo.BindWinner(current.ID, ticket.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrPrizeWinnerBound
		}
		current.WinnerTicketID = &ticket.ID
		prize = current
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyWinner
		}
		return nil, err
	}
	logger.Infow("prize_winner_assigned", "raffle_id", prize.RaffleID, "prize_id", prize.ID, "ticket_number", ticketNumber)
	if raffle, err := s.loadRaffle(ctx, prize.RaffleID); err == nil {
		s.revealAfterChange(ctx, raffle)
	}
	return prize, nil
}

// UpdatePrize 按补丁更新奖品，仅在未解锁时允许，中奖绑定不可修改
func (s *PrizeService) UpdatePrize(ctx context.Context, prizeID uint, patch repository.PrizePatch) (*models.Prize, error) {
	if patch.ThresholdPercent != nil && patch.ThresholdCount != nil {
		return nil, ErrPrizeThresholdInvalid
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, ErrPrizeInvalid
	}
	var updated *models.Prize
	err := runInTx(ctx, s.cfg.StorageTimeout(), func(tx *gorm.DB) error {
		prizeRepo := s.prizeRepo.WithTx(tx)
		current, err := prizeRepo.GetByID(prizeID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPrizeNotFound
		}
		if !current.IsLocked() {
			return ErrPrizeLocked
		}
		if patch.ThresholdPercent != nil || patch.ThresholdCount != nil {
			raffle, err := s.raffleRepo.WithTx(tx).GetByID(current.RaffleID)
			if err != nil {
				return err
			}
			if raffle == nil {
				return ErrRaffleNotFound
			}
			if err := validateThreshold(patch.ThresholdPercent, patch.ThresholdCount, raffle.Capacity); err != nil {
				return err
			}
		}
		affected, err := prizeRepo.ApplyPatch(prizeID, patch)
		if err != nil {
			return err
		}
		if affected == 0 && !patch.IsEmpty() {
			return ErrPrizeLocked
		}
		updated, err = prizeRepo.GetByID(prizeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if raffle, err := s.loadRaffle(ctx, updated.RaffleID); err == nil {
		s.revealAfterChange(ctx, raffle)
	}
	return updated, nil
}

// ListPrizes 列出活动奖品；publicView 时未解锁奖品不暴露中奖信息
func (s *PrizeService) ListPrizes(ctx context.Context, raffleID uint, publicView bool) ([]PrizeView, error) {
	if _, err := s.loadRaffle(ctx, raffleID); err != nil {
		return nil, err
	}
	sctx, cancel := withStorageTimeout(ctx, s.cfg.StorageTimeout())
	defer cancel()
	prizes, err := s.prizeRepo.WithContext(sctx).ListByRaffle(raffleID, "")
	if err != nil {
		return nil, wrapStorageError(err)
	}
	ticketRepo := s.ticketRepo.WithContext(sctx)
	views := make([]PrizeView, 0, len(prizes))
	for i := range prizes {
		prize := prizes[i]
		view := PrizeView{
			ID:               prize.ID,
			RaffleID:         prize.RaffleID,
			Name:             prize.Name,
			Description:      prize.Description,
			ThresholdType:    prize.ThresholdType(),
			ThresholdPercent: prize.ThresholdPercent,
			ThresholdCount:   prize.ThresholdCount,
			Status:           prize.Status,
			UnlockedAt:       prize.UnlockedAt,
			WinnerBound:      prize.WinnerTicketID != nil,
		}
		revealed := !prize.IsLocked()
		if prize.WinnerTicketID != nil && (revealed || !publicView) {
			ticket, err := ticketRepo.GetByID(*prize.WinnerTicketID)
			if err != nil {
				return nil, wrapStorageError(err)
			}
			if ticket != nil {
				number := ticket.Number
				view.WinningTicketNumber = &number
				if !publicView {
					view.WinnerOwnerRef = ticket.OwnerRef
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *PrizeService) loadRaffle(ctx context.Context, raffleID uint) (*models.Raffle, error) {
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
	return raffle, nil
}

// revealAfterChange 奖品变更后对售卖中的活动补一次开奖扫描，失败仅记录
func (s *PrizeService) revealAfterChange(ctx context.Context, raffle *models.Raffle) {
	if s.revelation == nil || raffle == nil || !raffle.IsActive() {
		return
	}
	if _, err := s.revelation.Reveal(context.WithoutCancel(ctx), raffle.ID); err != nil {
		logger.Warnw("prize_change_revelation_failed", "raffle_id", raffle.ID, "error", err)
	}
}
