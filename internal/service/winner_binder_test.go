package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raffle-next/internal/config"
)

type fixedRandom struct {
	offset int64
}

func (r fixedRandom) Int63n(int64) (int64, error) { return r.offset, nil }

func TestWinnerBinderSkipsSoldTickets(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 5)
	if err := env.pool.MarkSold(context.Background(), nil, raffle.ID, []int{0, 1}, "o", "a"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}

	ticket, err := NewWinnerBinder(env.ticketRepo, fixedRandom{offset: 1}).Bind(env.db, raffle.ID)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if ticket.Number != 3 {
		t.Fatalf("offset 1 over candidates [2 3 4] should pick 3, got %d", ticket.Number)
	}
}

func TestWinnerBinderEmptyPool(t *testing.T) {
	env := setupRaffleServiceTest(t, config.RaffleConfig{})
	raffle := env.createRaffle(t, 2)
	if err := env.pool.MarkSold(context.Background(), nil, raffle.ID, []int{0, 1}, "o", "a"); err != nil {
		t.Fatalf("mark sold failed: %v", err)
	}
	if _, err := NewWinnerBinder(env.ticketRepo, nil).Bind(env.db, raffle.ID); !errors.Is(err, ErrNoTicketsAvailable) {
		t.Fatalf("want ErrNoTicketsAvailable got %v", err)
	}
}

func TestCryptoRandomSourceBounds(t *testing.T) {
	src := cryptoRandomSource{}
	if _, err := src.Int63n(0); err == nil {
		t.Fatalf("zero bound should fail")
	}
	for i := 0; i < 100; i++ {
		v, err := src.Int63n(3)
		if err != nil {
			t.Fatalf("random failed: %v", err)
		}
		if v < 0 || v >= 3 {
			t.Fatalf("value out of range: %d", v)
		}
	}
}
