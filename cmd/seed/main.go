package main

import (
	"context"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"
	"github.com/raffle-next/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.LogLevel, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() { _ = models.CloseDB() }()

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	raffleRepo := repository.NewRaffleRepository(models.DB)
	ticketRepo := repository.NewTicketRepository(models.DB)
	prizeRepo := repository.NewPrizeRepository(models.DB)
	pool := service.NewTicketPool(raffleRepo, ticketRepo, prizeRepo, cfg.Raffle)
	raffles := service.NewRaffleService(raffleRepo, ticketRepo, pool, nil, cfg.Raffle)
	prizes := service.NewPrizeService(raffleRepo, ticketRepo, prizeRepo, service.NewWinnerBinder(ticketRepo, nil), nil, cfg.Raffle)

	ctx := context.Background()
	raffle, err := raffles.CreateRaffle(ctx, service.CreateRaffleInput{
		Title:       "Demo Raffle",
		Description: "100 tickets, three progressive prizes",
		Capacity:    100,
		TicketPrice: decimal.RequireFromString("5.00"),
		Currency:    constants.CurrencyDefault,
	})
	if err != nil {
		stdLog.Fatalf("Failed to create raffle: %v", err)
	}

	quarter := decimal.NewFromInt(25)
	half := decimal.NewFromInt(50)
	full := 100
	seeds := []service.CreatePrizeInput{
		{RaffleID: raffle.ID, Name: "Coffee Voucher", ThresholdPercent: &quarter, SortOrder: 1},
		{RaffleID: raffle.ID, Name: "Headphones", ThresholdPercent: &half, SortOrder: 2},
		{RaffleID: raffle.ID, Name: "Bicycle", ThresholdCount: &full, SortOrder: 3},
	}
	for _, input := range seeds {
		if _, err := prizes.CreatePrize(ctx, input); err != nil {
			stdLog.Fatalf("Failed to create prize %s: %v", input.Name, err)
		}
	}

	if _, err := raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive); err != nil {
		stdLog.Fatalf("Failed to activate raffle: %v", err)
	}
	logger.Infow("seed_completed", "raffle_id", raffle.ID, "prizes", len(seeds))
}
