package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/raffle-next/internal/config"
)

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueuePrizeRevealed(PrizeRevealedPayload{PrizeID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.EnqueueRaffleRescan(RaffleRescanPayload{RaffleID: 1}, time.Second); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}
}

func TestNewPrizeRevealedTaskPayload(t *testing.T) {
	unlockedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	task, err := NewPrizeRevealedTask(PrizeRevealedPayload{
		PrizeID:             7,
		RaffleID:            3,
		PrizeName:           "bike",
		WinningTicketNumber: 42,
		WinnerOwnerRef:      "order-9",
		UnlockedAt:          unlockedAt,
	})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskPrizeRevealed {
		t.Fatalf("task type want %s got %s", TaskPrizeRevealed, task.Type())
	}
	var decoded PrizeRevealedPayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if decoded.WinningTicketNumber != 42 || decoded.WinnerOwnerRef != "order-9" || !decoded.UnlockedAt.Equal(unlockedAt) {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPrizeRevealedTaskIDIsStablePerPrize(t *testing.T) {
	if prizeRevealedTaskID(5) != prizeRevealedTaskID(5) {
		t.Fatalf("task id should be deterministic")
	}
	if prizeRevealedTaskID(5) == prizeRevealedTaskID(6) {
		t.Fatalf("different prizes should have different task ids")
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("default addr want 127.0.0.1:6379 got %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("default concurrency want 10 got %d", cfg.Concurrency)
	}
	if cfg.Queues[CriticalQueue] == 0 || cfg.Queues[DefaultQueue] == 0 {
		t.Fatalf("default queues should include critical and default, got %v", cfg.Queues)
	}

	opt, cfg = BuildServerConfig(&config.QueueConfig{Host: " redis ", Port: 6380, DB: 2, Concurrency: 4, Queues: map[string]int{"default": 1}})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 4 || len(cfg.Queues) != 1 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
