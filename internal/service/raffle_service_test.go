package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"
	"github.com/raffle-next/internal/repository"

	"github.com/shopspring/decimal"
)

func TestCreateRaffleBuildsPool(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{PoolBatchSize: 7, Currency: "eur"})
	raffle := env.createRaffle(t, 20)
	if raffle.Status != constants.RaffleStatusDraft || raffle.Currency != "EUR" {
		t.Fatalf("unexpected raffle: %+v", raffle)
	}
	total, err := env.ticketRepo.CountByRaffle(raffle.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 20 {
		t.Fatalf("pool want 20 got %d", total)
	}
}

func TestCreateRaffleValidation(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{MaxCapacity: 100})
	ctx := context.Background()
	if _, err := env.raffles.CreateRaffle(ctx, CreateRaffleInput{Title: " ", Capacity: 10}); !errors.Is(err, ErrRaffleInvalid) {
		t.Fatalf("blank title want ErrRaffleInvalid got %v", err)
	}
	if _, err := env.raffles.CreateRaffle(ctx, CreateRaffleInput{Title: "x", Capacity: 10, TicketPrice: decimal.NewFromInt(-1)}); !errors.Is(err, ErrRaffleInvalid) {
		t.Fatalf("negative price want ErrRaffleInvalid got %v", err)
	}
	if _, err := env.raffles.CreateRaffle(ctx, CreateRaffleInput{Title: "x", Capacity: 101}); !errors.Is(err, ErrCapacityInvalid) {
		t.Fatalf("capacity over max want ErrCapacityInvalid got %v", err)
	}
	var count int64
	env.db.Model(&models.Raffle{}).Count(&count)
	if count != 0 {
		t.Fatalf("invalid input must not create raffles")
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 4)
	ctx := context.Background()

	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusCompleted); !errors.Is(err, ErrRaffleStatusInvalid) {
		t.Fatalf("draft->completed want ErrRaffleStatusInvalid got %v", err)
	}
	active, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if active.ActivatedAt == nil {
		t.Fatalf("activated_at should be set")
	}
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusDraft); !errors.Is(err, ErrRaffleStatusInvalid) {
		t.Fatalf("active->draft want ErrRaffleStatusInvalid got %v", err)
	}
	completed, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusCompleted)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.ClosedAt == nil {
		t.Fatalf("closed_at should be set")
	}
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive); !errors.Is(err, ErrRaffleStatusInvalid) {
		t.Fatalf("completed->active want ErrRaffleStatusInvalid got %v", err)
	}
}

func TestCompleteRaffleRunsFinalRevelation(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createActiveRaffle(t, 4)
	prize := env.createCountPrize(t, raffle.ID, "final", 2)
	ctx := context.Background()
	if err := env.pool.MarkSold(ctx, nil, raffle.ID, []int{0, 1}, "o", "a"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}
	if !env.reloadPrize(t, prize.ID).IsLocked() {
		t.Fatalf("direct pool sale should not reveal")
	}
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if env.reloadPrize(t, prize.ID).IsLocked() {
		t.Fatalf("completion should run a final revelation")
	}
}

func TestActivateRequiresCompletePool(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 4)
	if err := env.db.Where("raffle_id = ? AND number = ?", raffle.ID, 3).Delete(&models.Ticket{}).Error; err != nil {
		t.Fatalf("delete ticket failed: %v", err)
	}
	ctx := context.Background()
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive); !errors.Is(err, ErrTicketPoolIncomplete) {
		t.Fatalf("want ErrTicketPoolIncomplete got %v", err)
	}
	if err := env.raffles.CreateTicketPool(ctx, raffle.ID, true); err != nil {
		t.Fatalf("resume pool failed: %v", err)
	}
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusActive); err != nil {
		t.Fatalf("activate after resume failed: %v", err)
	}
}

func TestUpdateRafflePatch(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 4)
	ctx := context.Background()

	description := "new description"
	updated, err := env.raffles.UpdateRaffle(ctx, raffle.ID, repository.RafflePatch{Description: &description})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Description != description || updated.Title != raffle.Title {
		t.Fatalf("patch should only touch description: %+v", updated)
	}

	blank := " "
	if _, err := env.raffles.UpdateRaffle(ctx, raffle.ID, repository.RafflePatch{Title: &blank}); !errors.Is(err, ErrRaffleInvalid) {
		t.Fatalf("blank title want ErrRaffleInvalid got %v", err)
	}
	if _, err := env.raffles.ChangeStatus(ctx, raffle.ID, constants.RaffleStatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := env.raffles.UpdateRaffle(ctx, raffle.ID, repository.RafflePatch{Description: &description}); !errors.Is(err, ErrRaffleStatusInvalid) {
		t.Fatalf("cancelled raffle want ErrRaffleStatusInvalid got %v", err)
	}
	if _, err := env.raffles.GetRaffle(ctx, 404); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("want ErrRaffleNotFound got %v", err)
	}
}

func TestListRafflesByStatus(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	env.createRaffle(t, 2)
	env.createActiveRaffle(t, 2)

	items, total, err := env.raffles.ListRaffles(context.Background(), repository.RaffleListFilter{Status: constants.RaffleStatusActive, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Status != constants.RaffleStatusActive {
		t.Fatalf("unexpected list: total=%d items=%+v", total, items)
	}
}
