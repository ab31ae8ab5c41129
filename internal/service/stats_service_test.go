package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raffle-next/internal/config"
)

func TestGetRaffleStats(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createActiveRaffle(t, 8)
	env.createCountPrize(t, raffle.ID, "first", 2)
	env.createCountPrize(t, raffle.ID, "second", 6)
	ctx := context.Background()
	if _, err := env.allocation.AllocateTickets(ctx, AllocateTicketsInput{RaffleID: raffle.ID, Quantity: 3}); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	stats, err := env.stats.GetRaffleStats(ctx, raffle.ID)
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if stats.Total != 8 || stats.Sold != 3 || stats.Available != 5 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.Percentage != "37.50" {
		t.Fatalf("percentage want 37.50 got %s", stats.Percentage)
	}
	if stats.Unlocked != 1 || stats.Locked != 1 {
		t.Fatalf("prize counts want 1/1 got %d/%d", stats.Unlocked, stats.Locked)
	}
	if stats.Winners != 1 {
		t.Fatalf("winners want 1 got %d", stats.Winners)
	}
}

func TestGetRaffleStatsUnknownRaffle(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	if _, err := env.stats.GetRaffleStats(context.Background(), 404); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("want ErrRaffleNotFound got %v", err)
	}
	if _, err := env.stats.GetRaffleStats(context.Background(), 0); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("zero id want ErrRaffleNotFound got %v", err)
	}
}
