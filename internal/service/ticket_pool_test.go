package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"
)

func TestCreatePoolValidatesCapacity(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{MaxCapacity: 50})
	raffle := env.createRaffle(t, 5)
	ctx := context.Background()
	for _, capacity := range []int{0, -1, 51} {
		if err := env.pool.CreatePool(ctx, raffle.ID, capacity, false); !errors.Is(err, ErrCapacityInvalid) {
			t.Fatalf("capacity %d want ErrCapacityInvalid got %v", capacity, err)
		}
	}
}

func TestCreatePoolRejectsExistingUnlessResume(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{PoolBatchSize: 3})
	raffle := env.createRaffle(t, 10)
	ctx := context.Background()

	if err := env.pool.CreatePool(ctx, raffle.ID, raffle.Capacity, false); !errors.Is(err, ErrTicketPoolExists) {
		t.Fatalf("want ErrTicketPoolExists got %v", err)
	}
	if err := env.db.Where("raffle_id = ? AND number IN ?", raffle.ID, []int{2, 8}).Delete(&models.Ticket{}).Error; err != nil {
		t.Fatalf("delete tickets failed: %v", err)
	}
	if err := env.pool.CreatePool(ctx, raffle.ID, raffle.Capacity, true); err != nil {
		t.Fatalf("resume create failed: %v", err)
	}
	snapshot, err := env.pool.Snapshot(ctx, raffle.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Total != 10 || snapshot.Available != 10 {
		t.Fatalf("resumed pool should be complete, got %+v", snapshot)
	}
	for _, number := range []int{0, 2, 8, 9} {
		ticket, err := env.ticketRepo.GetByNumber(raffle.ID, number)
		if err != nil || ticket == nil {
			t.Fatalf("ticket %d missing: %v", number, err)
		}
	}
}

func TestCreatePoolUnknownRaffle(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	if err := env.pool.CreatePool(context.Background(), 404, 5, false); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("want ErrRaffleNotFound got %v", err)
	}
}

func TestSnapshotPercentage(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 3)
	ctx := context.Background()
	if err := env.pool.MarkSold(ctx, nil, raffle.ID, []int{0}, "o", "a"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}
	snapshot, err := env.pool.Snapshot(ctx, raffle.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Sold != 1 || snapshot.Total != 3 || snapshot.Percentage.String() != "33.3333" {
		t.Fatalf("unexpected snapshot: %+v percentage=%s", snapshot, snapshot.Percentage.String())
	}
	if !salesPercentage(0, 0).IsZero() {
		t.Fatalf("empty pool percentage should be zero")
	}
}

func TestMarkSoldConflictRollsBackWholeClaim(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 5)
	ctx := context.Background()

	if err := env.pool.MarkSold(ctx, nil, raffle.ID, []int{1, 2}, "first", "a1"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := env.pool.MarkSold(ctx, nil, raffle.ID, []int{2, 3}, "second", "a2"); !errors.Is(err, ErrTicketConflict) {
		t.Fatalf("want ErrTicketConflict got %v", err)
	}
	ticket, err := env.ticketRepo.GetByNumber(raffle.ID, 3)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	if ticket.IsSold() {
		t.Fatalf("ticket 3 must roll back with the failed claim")
	}
	if err := env.pool.MarkSold(ctx, nil, raffle.ID, []int{4, 4}, "dup", "a3"); !errors.Is(err, ErrTicketNumberInvalid) {
		t.Fatalf("duplicate numbers want ErrTicketNumberInvalid got %v", err)
	}
	if env.soldCount(t, raffle.ID) != 2 {
		t.Fatalf("sold should stay 2")
	}
}

func TestMarkWinnerExclusive(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 3)
	ctx := context.Background()
	ticket, err := env.ticketRepo.GetByNumber(raffle.ID, 0)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}

	if err := env.pool.MarkWinner(ctx, nil, ticket.ID, 1); err != nil {
		t.Fatalf("mark winner failed: %v", err)
	}
	if err := env.pool.MarkWinner(ctx, nil, ticket.ID, 1); err != nil {
		t.Fatalf("re-mark for same prize should succeed: %v", err)
	}
	if err := env.pool.MarkWinner(ctx, nil, ticket.ID, 2); !errors.Is(err, ErrAlreadyWinner) {
		t.Fatalf("want ErrAlreadyWinner got %v", err)
	}
	if err := env.pool.MarkWinner(ctx, nil, 9999, 1); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("want ErrTicketNotFound got %v", err)
	}
}

func TestRegenerateResizesPool(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{PoolBatchSize: 4})
	raffle := env.createRaffle(t, 10)
	ctx := context.Background()

	if err := env.pool.Regenerate(ctx, raffle.ID, 6); err != nil {
		t.Fatalf("shrink failed: %v", err)
	}
	snapshot, err := env.pool.Snapshot(ctx, raffle.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Total != 6 {
		t.Fatalf("shrunk pool want 6 got %d", snapshot.Total)
	}
	if err := env.pool.Regenerate(ctx, raffle.ID, 12); err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	snapshot, err = env.pool.Snapshot(ctx, raffle.ID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Total != 12 {
		t.Fatalf("grown pool want 12 got %d", snapshot.Total)
	}
	reloaded, err := env.raffleRepo.GetByID(raffle.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload raffle failed: %v", err)
	}
	if reloaded.Capacity != 12 {
		t.Fatalf("capacity want 12 got %d", reloaded.Capacity)
	}
	last, err := env.ticketRepo.GetByNumber(raffle.ID, 11)
	if err != nil || last == nil {
		t.Fatalf("ticket 11 should exist: %v", err)
	}
}

func TestRegenerateGuards(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	ctx := context.Background()

	sold := env.createRaffle(t, 5)
	if err := env.pool.MarkSold(ctx, nil, sold.ID, []int{0}, "o", "a"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}
	if err := env.pool.Regenerate(ctx, sold.ID, 8); !errors.Is(err, ErrTicketPoolHasSales) {
		t.Fatalf("want ErrTicketPoolHasSales got %v", err)
	}

	bound := env.createRaffle(t, 5)
	binder := NewWinnerBinder(env.ticketRepo, firstRandom{})
	prizes := NewPrizeService(env.raffleRepo, env.ticketRepo, env.prizeRepo, binder, nil, env.cfg)
	count := 1
	if _, err := prizes.CreatePrize(ctx, CreatePrizeInput{RaffleID: bound.ID, Name: "low", ThresholdCount: &count}); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}
	if err := env.db.Model(&models.Prize{}).Where("raffle_id = ?", bound.ID).Update("winner_ticket_id", nil).Error; err != nil {
		t.Fatalf("clear binding failed: %v", err)
	}
	last, err := env.ticketRepo.GetByNumber(bound.ID, 4)
	if err != nil || last == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	if err := env.db.Model(&models.Prize{}).Where("raffle_id = ?", bound.ID).Update("winner_ticket_id", last.ID).Error; err != nil {
		t.Fatalf("bind last ticket failed: %v", err)
	}
	if err := env.pool.Regenerate(ctx, bound.ID, 3); !errors.Is(err, ErrTicketPoolHasWinners) {
		t.Fatalf("want ErrTicketPoolHasWinners got %v", err)
	}

	threshold := env.createRaffle(t, 10)
	high := 8
	if _, err := prizes.CreatePrize(ctx, CreatePrizeInput{RaffleID: threshold.ID, Name: "high", ThresholdCount: &high}); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}
	if err := env.pool.Regenerate(ctx, threshold.ID, 5); !errors.Is(err, ErrPrizeThresholdInvalid) {
		t.Fatalf("want ErrPrizeThresholdInvalid got %v", err)
	}
}

func TestPurgeTicketPool(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	ctx := context.Background()

	draft := env.createRaffle(t, 4)
	deleted, err := env.pool.Purge(ctx, draft.ID)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted want 4 got %d", deleted)
	}

	active := env.createActiveRaffle(t, 4)
	if _, err := env.pool.Purge(ctx, active.ID); !errors.Is(err, ErrRaffleStatusInvalid) {
		t.Fatalf("active purge want ErrRaffleStatusInvalid got %v", err)
	}

	withPrize := env.createRaffle(t, 4)
	env.createCountPrize(t, withPrize.ID, "bound", 1)
	if _, err := env.pool.Purge(ctx, withPrize.ID); !errors.Is(err, ErrTicketPoolHasWinners) {
		t.Fatalf("want ErrTicketPoolHasWinners got %v", err)
	}

	if _, err := env.pool.Purge(ctx, 404); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("want ErrRaffleNotFound got %v", err)
	}
}

func TestListTicketsFiltersWinners(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createActiveRaffle(t, 6)
	prize := env.createCountPrize(t, raffle.ID, "only", 1)
	winner := env.winnerTicket(t, prize)
	ctx := context.Background()
	if _, err := env.allocation.AllocateTickets(ctx, AllocateTicketsInput{RaffleID: raffle.ID, Numbers: []int{winner.Number}, OwnerRef: "lucky"}); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	items, total, err := env.pool.ListTickets(ctx, repository.TicketListFilter{RaffleID: raffle.ID, OnlyWinners: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || items[0].Number != winner.Number || items[0].Status != constants.TicketStatusSold {
		t.Fatalf("unexpected winners: total=%d items=%+v", total, items)
	}
	if _, err := env.pool.CountByState(ctx, raffle.ID, "reserved"); err == nil {
		t.Fatalf("unknown state should fail")
	}
}
