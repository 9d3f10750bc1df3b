package stress

import (
	"reflect"
	"testing"

	"hydra-core/internal/risk"
)

func testPositions() []risk.Position {
	return []risk.Position{
		{Symbol: "BTC/USDT:USDT", Value: 60000, Returns: []float64{0.01, -0.02, 0.015, -0.01, 0.02}},
		{Symbol: "ETH/USDT:USDT", Value: 30000, Returns: []float64{0.02, -0.03, 0.01, -0.015, 0.025}},
		{Symbol: "SOL/USDT:USDT", Value: 10000, Returns: []float64{0.03, -0.05, 0.02, -0.04, 0.05}},
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := NewSimulator(5)
	scenario := Scenario{Name: "flash_crash", MarketShock: -0.15, VolatilityMultiplier: 2.0, LiquidityReduction: 0.3, Seed: 42}

	first := s.Run(testPositions(), scenario)
	second := s.Run(testPositions(), scenario)

	if first.TotalLoss != second.TotalLoss {
		t.Fatalf("same seed must reproduce the loss: %f vs %f", first.TotalLoss, second.TotalLoss)
	}
	if !reflect.DeepEqual(first.WorstCasePositions, second.WorstCasePositions) {
		t.Fatal("same seed must reproduce the ranking")
	}
}

func TestRun_ShockMonotonicity(t *testing.T) {
	s := NewSimulator(5)

	mild := Scenario{Name: "correction", MarketShock: -0.05, VolatilityMultiplier: 1.5, LiquidityReduction: 0.2, Seed: 7}
	severe := mild
	severe.MarketShock = -0.25

	lossA := s.Run(testPositions(), mild).TotalLoss
	lossB := s.Run(testPositions(), severe).TotalLoss

	if lossB < lossA {
		t.Fatalf("a worse shock must not lose less: %f < %f", lossB, lossA)
	}
}

func TestRun_LiquidityRequirement(t *testing.T) {
	s := NewSimulator(5)
	scenario := Scenario{Name: "liquidity_crunch", MarketShock: -0.10, LiquidityReduction: 0.5, Seed: 11}

	result := s.Run(testPositions(), scenario)
	if result.LiquidityRequirement <= 0 {
		t.Fatalf("a losing scenario needs cash to unwind, got %f", result.LiquidityRequirement)
	}
	want := result.TotalLoss * 0.5
	if want < 0 {
		want = -want
	}
	if result.LiquidityRequirement != want {
		t.Fatalf("expected |loss|*reduction, got %f want %f", result.LiquidityRequirement, want)
	}
}

func TestRun_TopNTruncation(t *testing.T) {
	s := NewSimulator(2)
	scenario := Scenario{Name: "broad_selloff", MarketShock: -0.20, Seed: 3}

	result := s.Run(testPositions(), scenario)
	if len(result.WorstCasePositions) != 2 {
		t.Fatalf("expected top 2 positions, got %d", len(result.WorstCasePositions))
	}
	if result.WorstCasePositions[0].Loss < result.WorstCasePositions[1].Loss {
		t.Fatal("worst positions must be sorted by loss descending")
	}
}

func TestRun_NameDerivedSeed(t *testing.T) {
	s := NewSimulator(5)
	scenario := Scenario{Name: "black_swan", MarketShock: -0.30, VolatilityMultiplier: 3.0}

	first := s.Run(testPositions(), scenario)
	second := s.Run(testPositions(), scenario)
	if first.TotalLoss != second.TotalLoss {
		t.Fatal("seed derived from the scenario name must be stable")
	}
}
