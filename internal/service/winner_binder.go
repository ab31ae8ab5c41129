package service

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"gorm.io/gorm"
)

// RandomSource 返回 [0, n) 内均匀分布的整数
type RandomSource interface {
	Int63n(n int64) (int64, error)
}

type cryptoRandomSource struct{}

func (cryptoRandomSource) Int63n(n int64) (int64, error) {
	if n <= 0 {
		return 0, errors.New("random bound must be positive")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// WinnerBinder 在可售且未绑定的奖券中均匀随机选出中奖券
type WinnerBinder struct {
	ticketRepo repository.TicketRepository
	random     RandomSource
}

// NewWinnerBinder 创建中奖券绑定器，random 为空时使用 crypto/rand
func NewWinnerBinder(ticketRepo repository.TicketRepository, random RandomSource) *WinnerBinder {
	if random == nil {
		random = cryptoRandomSource{}
	}
	return &WinnerBinder{ticketRepo: ticketRepo, random: random}
}

// Bind 在事务内挑选候选奖券；候选为空返回 ErrNoTicketsAvailable。
// 返回的奖券需由调用方写入奖品，唯一索引兜底并发冲突。
func (b *WinnerBinder) Bind(tx *gorm.DB, raffleID uint) (*models.Ticket, error) {
	repo := b.ticketRepo.WithTx(tx)
	total, err := repo.CountUnboundAvailable(raffleID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoTicketsAvailable
	}
	offset, err := b.random.Int63n(total)
	if err != nil {
		return nil, err
	}
	ticket, err := repo.GetUnboundAvailableAt(raffleID, offset)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrNoTicketsAvailable
	}
	return ticket, nil
}
