package app

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"hydra-core/internal/alert"
	"hydra-core/internal/allocator"
	"hydra-core/internal/compliance"
	"hydra-core/internal/config"
	"hydra-core/internal/monitor"
	"hydra-core/internal/store"
)

func newViolationOrchestrator(t *testing.T, rules []compliance.Rule) (*orchestrator, context.Context) {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	vlog, err := compliance.NewViolationLog(st.DB())
	if err != nil {
		t.Fatalf("violation log: %v", err)
	}
	monSvc, err := monitor.NewService(st, zap.NewNop())
	if err != nil {
		t.Fatalf("monitor service: %v", err)
	}

	o := &orchestrator{
		logger:     zap.NewNop(),
		core:       newCore(allocator.Allocation{}),
		compliance: compliance.NewEngine(rules, zap.NewNop()),
		violations: vlog,
		monitor:    monSvc,
		dispatcher: alert.NewDispatcher(nil, nil, 10, zap.NewNop()),
		symbol:     "BTC/USDT:USDT",
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = o.core.Run(ctx) }()

	return o, ctx
}

func TestHandleViolations_BlockRuleBlocksWithoutCriticalSeverity(t *testing.T) {
	o, ctx := newViolationOrchestrator(t, []compliance.Rule{{
		ID:              "exposure-cap",
		Category:        "max_single_exposure",
		Enabled:         true,
		Severity:        "high",
		ViolationAction: compliance.ActionBlock,
		Parameters:      map[string]float64{"limit": 0.5},
	}})

	o.handleViolations(ctx, []compliance.Violation{{
		RuleID:       "exposure-cap",
		CurrentValue: 0.8,
		AllowedValue: 0.5,
	}})

	blocked, err := o.core.BlockNewEntries(ctx)
	if err != nil {
		t.Fatalf("BlockNewEntries: %v", err)
	}
	if !blocked {
		t.Fatal("a block rule must stop new entries regardless of its severity")
	}

	recent := o.dispatcher.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("expected one alert, got %d", len(recent))
	}
	if recent[0].Severity != alert.SeverityWarning {
		t.Fatalf("high-severity rule must not escalate the alert to %s", recent[0].Severity)
	}
}

func TestHandleViolations_WarnRuleDoesNotBlock(t *testing.T) {
	o, ctx := newViolationOrchestrator(t, []compliance.Rule{{
		ID:              "var-watch",
		Category:        "max_daily_var",
		Enabled:         true,
		Severity:        "medium",
		ViolationAction: compliance.ActionWarn,
		Parameters:      map[string]float64{"limit": 0.05},
	}})

	o.handleViolations(ctx, []compliance.Violation{{
		RuleID:       "var-watch",
		CurrentValue: 0.07,
		AllowedValue: 0.05,
	}})

	blocked, err := o.core.BlockNewEntries(ctx)
	if err != nil {
		t.Fatalf("BlockNewEntries: %v", err)
	}
	if blocked {
		t.Fatal("a warn rule must not stop new entries")
	}
}
