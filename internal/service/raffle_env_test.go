package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []PrizeRevealedEvent
}

func (p *recordingPublisher) PublishPrizeRevealed(_ context.Context, event PrizeRevealedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []PrizeRevealedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PrizeRevealedEvent(nil), p.events...)
}

type raffleTestEnv struct {
	db         *gorm.DB
	cfg        config.RaffleConfig
	raffleRepo *repository.GormRaffleRepository
	ticketRepo *repository.GormTicketRepository
	prizeRepo  *repository.GormPrizeRepository
	pool       *TicketPool
	revelation *RevelationScheduler
	allocation *AllocationService
	prizes     *PrizeService
	raffles    *RaffleService
	stats      *StatsService
	publisher  *recordingPublisher
}

func setupRaffleServiceTest(t *testing.T, cfg config.RaffleConfig) *raffleTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:raffle_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 与默认配置一致：sqlite 单连接串行写入
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	t.Cleanup(func() {
		models.DB = nil
		_ = sqlDB.Close()
	})

	cfg = cfg.Normalize()
	env := &raffleTestEnv{
		db:         db,
		cfg:        cfg,
		raffleRepo: repository.NewRaffleRepository(db),
		ticketRepo: repository.NewTicketRepository(db),
		prizeRepo:  repository.NewPrizeRepository(db),
		publisher:  &recordingPublisher{},
	}
	env.pool = NewTicketPool(env.raffleRepo, env.ticketRepo, env.prizeRepo, cfg)
	env.revelation = NewRevelationScheduler(env.raffleRepo, env.ticketRepo, env.prizeRepo, env.pool, env.publisher, cfg)
	env.allocation = NewAllocationService(env.raffleRepo, env.ticketRepo, env.pool, env.revelation, nil, cfg)
	env.prizes = NewPrizeService(env.raffleRepo, env.ticketRepo, env.prizeRepo, NewWinnerBinder(env.ticketRepo, nil), env.revelation, cfg)
	env.raffles = NewRaffleService(env.raffleRepo, env.ticketRepo, env.pool, env.revelation, cfg)
	env.stats = NewStatsService(env.raffleRepo, env.prizeRepo, env.pool, cfg)
	return env
}

func (env *raffleTestEnv) createRaffle(t *testing.T, capacity int) *models.Raffle {
	t.Helper()
	raffle, err := env.raffles.CreateRaffle(context.Background(), CreateRaffleInput{
		Title:       "test raffle",
		Capacity:    capacity,
		TicketPrice: decimal.RequireFromString("2.50"),
	})
	if err != nil {
		t.Fatalf("create raffle failed: %v", err)
	}
	return raffle
}

func (env *raffleTestEnv) createActiveRaffle(t *testing.T, capacity int) *models.Raffle {
	t.Helper()
	raffle := env.createRaffle(t, capacity)
	active, err := env.raffles.ChangeStatus(context.Background(), raffle.ID, constants.RaffleStatusActive)
	if err != nil {
		t.Fatalf("activate raffle failed: %v", err)
	}
	return active
}

func (env *raffleTestEnv) createPercentPrize(t *testing.T, raffleID uint, name string, percent string) *models.Prize {
	t.Helper()
	value := decimal.RequireFromString(percent)
	result, err := env.prizes.CreatePrize(context.Background(), CreatePrizeInput{
		RaffleID:         raffleID,
		Name:             name,
		ThresholdPercent: &value,
	})
	if err != nil {
		t.Fatalf("create percent prize failed: %v", err)
	}
	return result.Prize
}

func (env *raffleTestEnv) createCountPrize(t *testing.T, raffleID uint, name string, count int) *models.Prize {
	t.Helper()
	result, err := env.prizes.CreatePrize(context.Background(), CreatePrizeInput{
		RaffleID:       raffleID,
		Name:           name,
		ThresholdCount: &count,
	})
	if err != nil {
		t.Fatalf("create count prize failed: %v", err)
	}
	return result.Prize
}

func (env *raffleTestEnv) reloadPrize(t *testing.T, id uint) *models.Prize {
	t.Helper()
	prize, err := env.prizeRepo.GetByID(id)
	if err != nil || prize == nil {
		t.Fatalf("reload prize %d failed: %v", id, err)
	}
	return prize
}

func (env *raffleTestEnv) winnerTicket(t *testing.T, prize *models.Prize) *models.Ticket {
	t.Helper()
	if prize.WinnerTicketID == nil {
		t.Fatalf("prize %d has no bound winner", prize.ID)
	}
	ticket, err := env.ticketRepo.GetByID(*prize.WinnerTicketID)
	if err != nil || ticket == nil {
		t.Fatalf("load winner ticket failed: %v", err)
	}
	return ticket
}

func (env *raffleTestEnv) soldCount(t *testing.T, raffleID uint) int64 {
	t.Helper()
	sold, err := env.pool.CountByState(context.Background(), raffleID, constants.TicketStatusSold)
	if err != nil {
		t.Fatalf("count sold failed: %v", err)
	}
	return sold
}

// firstRandom 总是选第一个候选，便于断言
type firstRandom struct{}

func (firstRandom) Int63n(int64) (int64, error) { return 0, nil }
