package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"hydra-core/internal/allocator"
	"hydra-core/internal/risk"
)

func startCore(t *testing.T, initial allocator.Allocation) (*core, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := newCore(initial)
	go func() { _ = c.Run(ctx) }()
	return c, ctx
}

func TestCoreInitialAllocationVisible(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{
		Weights: map[string]float64{"alpha": 0.6, "beta": 0.4},
	})

	weights, err := c.Weights(ctx)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	if weights["alpha"] != 0.6 || weights["beta"] != 0.4 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}

func TestCoreWeightsReturnsCopy(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{
		Weights: map[string]float64{"alpha": 1.0},
	})

	weights, err := c.Weights(ctx)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	weights["alpha"] = 0

	again, err := c.Weights(ctx)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	if again["alpha"] != 1.0 {
		t.Fatalf("mutating the returned map leaked into core state: %v", again)
	}
}

func TestCoreBlockNewEntriesToggle(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{})

	if blocked, err := c.BlockNewEntries(ctx); err != nil || blocked {
		t.Fatalf("expected unblocked initially, got blocked=%v err=%v", blocked, err)
	}
	if err := c.SetBlockNewEntries(ctx, true); err != nil {
		t.Fatalf("SetBlockNewEntries: %v", err)
	}
	if blocked, err := c.BlockNewEntries(ctx); err != nil || !blocked {
		t.Fatalf("expected blocked after set, got blocked=%v err=%v", blocked, err)
	}
	if err := c.SetBlockNewEntries(ctx, false); err != nil {
		t.Fatalf("SetBlockNewEntries: %v", err)
	}
	if blocked, err := c.BlockNewEntries(ctx); err != nil || blocked {
		t.Fatalf("expected unblocked after clear, got blocked=%v err=%v", blocked, err)
	}
}

func TestCoreLimitsRoundTrip(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{})

	limits := []risk.RiskLimit{
		{Type: "leverage", Threshold: 3.0, CurrentValue: 1.5, Utilization: 0.5, Action: risk.ActionMonitor},
		{Type: "daily_var", Threshold: 0.04, CurrentValue: 0.05, Utilization: 1.25, Breached: true, Action: risk.ActionLiquidate},
	}
	if err := c.SetLimits(ctx, limits); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	got, err := c.Limits(ctx)
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if len(got) != 2 || got[0].Type != "leverage" || got[1].Action != risk.ActionLiquidate {
		t.Fatalf("unexpected limits: %+v", got)
	}

	got[0].Breached = true
	again, err := c.Limits(ctx)
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if again[0].Breached {
		t.Fatal("mutating the returned slice leaked into core state")
	}
}

func TestCoreStatsResets(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{})

	for i := 0; i < 3; i++ {
		if err := c.NoteDecision(ctx); err != nil {
			t.Fatalf("NoteDecision: %v", err)
		}
	}
	if err := c.NoteAlert(ctx); err != nil {
		t.Fatalf("NoteAlert: %v", err)
	}

	decisions, alerts, err := c.Stats(ctx, true)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if decisions != 3 || alerts != 1 {
		t.Fatalf("expected 3/1, got %d/%d", decisions, alerts)
	}

	decisions, alerts, err = c.Stats(ctx, false)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if decisions != 0 || alerts != 0 {
		t.Fatalf("expected counters reset, got %d/%d", decisions, alerts)
	}
}

func TestCoreConcurrentCounters(t *testing.T) {
	c, ctx := startCore(t, allocator.Allocation{})

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = c.NoteDecision(ctx)
			}
		}()
	}
	wg.Wait()

	decisions, _, err := c.Stats(ctx, false)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if decisions != workers*perWorker {
		t.Fatalf("expected %d decisions, got %d", workers*perWorker, decisions)
	}
}

func TestCoreDoRespectsCancelledContext(t *testing.T) {
	c := newCore(allocator.Allocation{})
	// 事件循环未启动，命令无法被消费。

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// 第一条命令进入缓冲队列后等待执行，超时应当返回错误而不是挂起。
	if err := c.NoteDecision(ctx); err == nil {
		t.Fatal("expected context error when the loop is not running")
	}
}
