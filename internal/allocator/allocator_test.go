package allocator

import (
	"math"
	"reflect"
	"testing"

	"hydra-core/internal/regime"
)

func testStrategies() []Strategy {
	return []Strategy{
		{ID: "trend", Enabled: true, RegimeFitness: map[string]float64{"BULL": 0.9, "SIDEWAYS": 0.3}},
		{ID: "meanrev", Enabled: true, RegimeFitness: map[string]float64{"BULL": 0.3, "SIDEWAYS": 0.9}},
		{ID: "carry", Enabled: false},
	}
}

func TestRebalance_WeightsSumToOne(t *testing.T) {
	a := New(Config{}, testStrategies())

	perf := map[string]PerformanceSnapshot{
		"trend":   {WinRate: 0.6, Sharpe: 1.5, MaxDrawdown: 0.1, TotalTrades: 50},
		"meanrev": {WinRate: 0.5, Sharpe: 0.8, MaxDrawdown: 0.2, TotalTrades: 40},
	}

	alloc := a.Rebalance(perf, regime.Regime{Type: regime.Bull})
	if !ValidateSum(alloc.Weights) {
		t.Fatalf("weights must sum to 1: %v", alloc.Weights)
	}
	if alloc.Weights["carry"] != 0 {
		t.Fatalf("disabled strategy must get zero weight, got %f", alloc.Weights["carry"])
	}
	if alloc.Weights["trend"] <= alloc.Weights["meanrev"] {
		t.Fatalf("trend should dominate in a bull regime: %v", alloc.Weights)
	}
}

func TestRebalance_Deterministic(t *testing.T) {
	a := New(Config{}, testStrategies())
	perf := map[string]PerformanceSnapshot{
		"trend":   {WinRate: 0.55, Sharpe: 1.0, MaxDrawdown: 0.15, TotalTrades: 30},
		"meanrev": {WinRate: 0.48, Sharpe: 0.5, MaxDrawdown: 0.25, TotalTrades: 25},
	}

	first := a.Rebalance(perf, regime.Regime{Type: regime.Sideways})
	second := a.Rebalance(perf, regime.Regime{Type: regime.Sideways})
	if !reflect.DeepEqual(first.Weights, second.Weights) {
		t.Fatalf("rebalance must be deterministic: %v vs %v", first.Weights, second.Weights)
	}
}

func TestRebalance_EqualWeightFallback(t *testing.T) {
	strategies := []Strategy{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: true},
	}
	a := New(Config{}, strategies)

	alloc := a.Rebalance(map[string]PerformanceSnapshot{}, regime.Regime{Type: regime.Bull})
	// 中性分非零，仍按分数归一化；两者分数相同时应等权。
	if math.Abs(alloc.Weights["a"]-alloc.Weights["b"]) > 1e-9 {
		t.Fatalf("identical strategies must split evenly: %v", alloc.Weights)
	}
	if !ValidateSum(alloc.Weights) {
		t.Fatalf("weights must sum to 1: %v", alloc.Weights)
	}
}

func TestRebalance_NoActiveStrategies(t *testing.T) {
	a := New(Config{}, []Strategy{{ID: "a", Enabled: false}})
	alloc := a.Rebalance(nil, regime.Regime{Type: regime.Bull})
	if alloc.Weights["a"] != 0 {
		t.Fatalf("expected zero weight, got %f", alloc.Weights["a"])
	}
}

func TestRebalance_DetailsExplainWeights(t *testing.T) {
	a := New(Config{}, testStrategies())
	perf := map[string]PerformanceSnapshot{
		"trend":   {WinRate: 0.6, Sharpe: 1.5, MaxDrawdown: 0.1, TotalTrades: 50},
		"meanrev": {WinRate: 0.5, Sharpe: 0.8, MaxDrawdown: 0.2, TotalTrades: 40},
	}

	alloc := a.Rebalance(perf, regime.Regime{Type: regime.Bull})

	d, ok := alloc.Details["trend"]
	if !ok || !d.Active {
		t.Fatalf("enabled strategy must carry an active breakdown: %+v", alloc.Details)
	}
	if d.PerformanceWeight <= 0 || d.RiskWeight <= 0 {
		t.Fatalf("components must be populated: %+v", d)
	}
	if d.RegimeWeight != 0.9 {
		t.Fatalf("regime component must come from the fitness table, got %f", d.RegimeWeight)
	}
	mean := (d.PerformanceWeight + d.RegimeWeight + d.RiskWeight) / 3.0
	if math.Abs(d.FinalWeight-mean) > 1e-9 {
		t.Fatalf("final weight must be the component mean: %+v", d)
	}
	if math.Abs(d.TargetAllocation-alloc.Weights["trend"]) > 1e-9 {
		t.Fatalf("target must match the normalized weight: %f vs %f", d.TargetAllocation, alloc.Weights["trend"])
	}

	disabled := alloc.Details["carry"]
	if disabled.Active || disabled.TargetAllocation != 0 {
		t.Fatalf("disabled strategy must have an inactive zero breakdown: %+v", disabled)
	}
	if alloc.RebalancedAt.IsZero() {
		t.Fatal("rebalance timestamp must be set")
	}
}

func TestRebalance_CompositeClippedToOne(t *testing.T) {
	// 分量权重之和大于1也不能让绩效合成分越界。
	a := New(Config{WinRateWeight: 1.0, SharpeWeight: 1.0, DrawdownWeight: 1.0}, []Strategy{
		{ID: "hot", Enabled: true},
	})
	perf := map[string]PerformanceSnapshot{
		"hot": {WinRate: 1.0, Sharpe: 5.0, MaxDrawdown: 0, TotalTrades: 100},
	}

	alloc := a.Rebalance(perf, regime.Regime{Type: regime.Bull})
	if p := alloc.Details["hot"].PerformanceWeight; p > 1.0 {
		t.Fatalf("performance composite must be clipped to [0,1], got %f", p)
	}
}

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker()
	returns := []float64{0.02, -0.01, 0.03, 0.01, -0.02, 0.02, 0.01, -0.01, 0.02, 0.01, 0.03, -0.02}
	for _, r := range returns {
		tr.Record("trend", r)
	}

	snap := tr.Snapshot("trend")
	if snap.TotalTrades != len(returns) {
		t.Fatalf("expected %d trades, got %d", len(returns), snap.TotalTrades)
	}
	if snap.WinRate <= 0.5 || snap.WinRate >= 1.0 {
		t.Fatalf("unexpected win rate %f", snap.WinRate)
	}
	if snap.MaxDrawdown <= 0 {
		t.Fatalf("drawdown must be positive with losing trades, got %f", snap.MaxDrawdown)
	}
	if snap.Sharpe <= 0 {
		t.Fatalf("positive mean return must yield positive sharpe, got %f", snap.Sharpe)
	}
}

func TestTrackerSnapshot_Empty(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot("ghost")
	if snap.TotalTrades != 0 || snap.WinRate != 0 || snap.Sharpe != 0 {
		t.Fatalf("empty history must produce a zero snapshot: %+v", snap)
	}
}
