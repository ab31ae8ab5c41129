package repository

import (
	"testing"
	"time"

	"github.com/raffle-next/internal/constants"
	"github.com/raffle-next/internal/models"

	"github.com/shopspring/decimal"
)

func TestPrizeRepositoryUnlockOnce(t *testing.T) {
	db := setupRaffleRepositoryDB(t)
	repo := NewPrizeRepository(db)
	raffle := createTestRaffleWithPool(t, db, 4)
	ticket, err := NewTicketRepository(db).GetByNumber(raffle.ID, 2)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	percent := decimal.NewFromInt(50)
	prize := &models.Prize{RaffleID: raffle.ID, Name: "half", ThresholdPercent: &percent, Status: constants.PrizeStatusLocked, WinnerTicketID: &ticket.ID}
	if err := repo.Create(prize); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}

	if affected, err := repo.Unlock(prize.ID, time.Now()); err != nil || affected != 1 {
		t.Fatalf("first unlock affected=%d err=%v", affected, err)
	}
	if affected, err := repo.Unlock(prize.ID, time.Now()); err != nil || affected != 0 {
		t.Fatalf("second unlock should be a no-op, affected=%d err=%v", affected, err)
	}

	name := "after unlock"
	if affected, err := repo.ApplyPatch(prize.ID, PrizePatch{Name: &name}); err != nil || affected != 0 {
		t.Fatalf("patch on unlocked prize should not apply, affected=%d err=%v", affected, err)
	}
}

func TestPrizeRepositoryUnlockRequiresWinner(t *testing.T) {
	db := setupRaffleRepositoryDB(t)
	repo := NewPrizeRepository(db)
	raffle := createTestRaffleWithPool(t, db, 2)
	count := 1
	prize := &models.Prize{RaffleID: raffle.ID, Name: "unbound", ThresholdCount: &count, Status: constants.PrizeStatusLocked}
	if err := repo.Create(prize); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}
	if affected, err := repo.Unlock(prize.ID, time.Now()); err != nil || affected != 0 {
		t.Fatalf("unbound prize must not unlock, affected=%d err=%v", affected, err)
	}

	ticket, err := NewTicketRepository(db).GetByNumber(raffle.ID, 1)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	if affected, err := repo.BindWinner(prize.ID, ticket.ID); err != nil || affected != 1 {
		t.Fatalf("bind winner affected=%d err=%v", affected, err)
	}
	if affected, err := repo.BindWinner(prize.ID, ticket.ID); err != nil || affected != 0 {
		t.Fatalf("rebinding must not apply, affected=%d err=%v", affected, err)
	}
	bound, err := repo.IsTicketBound(ticket.ID)
	if err != nil || !bound {
		t.Fatalf("ticket should be bound, bound=%v err=%v", bound, err)
	}
	total, err := repo.CountBoundByRaffle(raffle.ID)
	if err != nil || total != 1 {
		t.Fatalf("bound count want 1 got %d err=%v", total, err)
	}
}

func TestPrizeRepositoryWinnerTicketUnique(t *testing.T) {
	db := setupRaffleRepositoryDB(t)
	repo := NewPrizeRepository(db)
	raffle := createTestRaffleWithPool(t, db, 2)
	ticket, err := NewTicketRepository(db).GetByNumber(raffle.ID, 0)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	count := 1
	first := &models.Prize{RaffleID: raffle.ID, Name: "a", ThresholdCount: &count, Status: constants.PrizeStatusLocked, WinnerTicketID: &ticket.ID}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first prize failed: %v", err)
	}
	second := &models.Prize{RaffleID: raffle.ID, Name: "b", ThresholdCount: &count, Status: constants.PrizeStatusLocked, WinnerTicketID: &ticket.ID}
	if err := repo.Create(second); err == nil {
		t.Fatalf("binding one ticket to two prizes should violate unique index")
	}
}

func TestPrizePatchSwitchesThresholdType(t *testing.T) {
	db := setupRaffleRepositoryDB(t)
	repo := NewPrizeRepository(db)
	raffle := createTestRaffleWithPool(t, db, 10)
	percent := decimal.NewFromInt(20)
	prize := &models.Prize{RaffleID: raffle.ID, Name: "switch", ThresholdPercent: &percent, Status: constants.PrizeStatusLocked}
	if err := repo.Create(prize); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}

	count := 7
	if affected, err := repo.ApplyPatch(prize.ID, PrizePatch{ThresholdCount: &count}); err != nil || affected != 1 {
		t.Fatalf("patch affected=%d err=%v", affected, err)
	}
	got, err := repo.GetByID(prize.ID)
	if err != nil || got == nil {
		t.Fatalf("get prize failed: %v", err)
	}
	if got.ThresholdPercent != nil || got.ThresholdCount == nil || *got.ThresholdCount != 7 {
		t.Fatalf("threshold should switch to count 7, got percent=%v count=%v", got.ThresholdPercent, got.ThresholdCount)
	}
	if got.ThresholdType() != constants.PrizeThresholdCount {
		t.Fatalf("threshold type want count got %s", got.ThresholdType())
	}
}

func TestPrizeRepositoryNotifiedOnlyAfterUnlock(t *testing.T) {
	db := setupRaffleRepositoryDB(t)
	repo := NewPrizeRepository(db)
	raffle := createTestRaffleWithPool(t, db, 4)
	ticket, err := NewTicketRepository(db).GetByNumber(raffle.ID, 1)
	if err != nil || ticket == nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	count := 1
	prize := &models.Prize{RaffleID: raffle.ID, Name: "notify", ThresholdCount: &count, Status: constants.PrizeStatusLocked, WinnerTicketID: &ticket.ID}
	if err := repo.Create(prize); err != nil {
		t.Fatalf("create prize failed: %v", err)
	}

	if affected, err := repo.MarkNotified(prize.ID, time.Now()); err != nil || affected != 0 {
		t.Fatalf("locked prize must not be marked notified, affected=%d err=%v", affected, err)
	}
	if _, err := repo.Unlock(prize.ID, time.Now()); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	pending, err := repo.ListUnnotified(raffle.ID)
	if err != nil {
		t.Fatalf("list unnotified failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != prize.ID {
		t.Fatalf("unlocked prize should be pending delivery, got %+v", pending)
	}
	if affected, err := repo.MarkNotified(prize.ID, time.Now()); err != nil || affected != 1 {
		t.Fatalf("mark notified affected=%d err=%v", affected, err)
	}
	if affected, err := repo.MarkNotified(prize.ID, time.Now()); err != nil || affected != 0 {
		t.Fatalf("second mark should be a no-op, affected=%d err=%v", affected, err)
	}
	pending, err = repo.ListUnnotified(raffle.ID)
	if err != nil || len(pending) != 0 {
		t.Fatalf("no prize should remain pending, got %d err=%v", len(pending), err)
	}
}
