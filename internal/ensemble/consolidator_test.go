package ensemble

import (
	"testing"
	"time"

	"hydra-core/internal/regime"
	"hydra-core/internal/signal"
)

func freshSignal(id string, action signal.Action, confidence, strength float64) signal.StrategySignal {
	return signal.StrategySignal{
		StrategyID:       id,
		Action:           action,
		Confidence:       confidence,
		Strength:         strength,
		ExpectedReturn:   0.01,
		RiskLevel:        signal.RiskMedium,
		PositionSizeHint: 0.1,
		Timestamp:        time.Now().UTC(),
		ValidityWindow:   time.Minute,
	}
}

func TestConsolidate_WeightedVote(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.6, MinAgreement: 2, MaxPositionSize: 0.25})

	signals := []signal.StrategySignal{
		freshSignal("alpha", signal.ActionBuy, 0.9, 1.0),
		freshSignal("beta", signal.ActionBuy, 0.6, 1.0),
		freshSignal("gamma", signal.ActionBuy, 0.4, 1.0),
		freshSignal("delta", signal.ActionSell, 0.9, 1.0),
	}
	weights := map[string]float64{
		"alpha": 0.5,
		"beta":  0.3,
		"gamma": 0.2,
		"delta": 0.0,
	}

	decision, ok := c.Consolidate(signals, weights, regime.Regime{Type: regime.Bull})
	if !ok {
		t.Fatal("expected a decision")
	}
	if decision.Action != signal.ActionBuy {
		t.Fatalf("expected BUY, got %s", decision.Action)
	}
	if decision.ConsensusLevel != 1.0 {
		t.Fatalf("expected consensus 1.0, got %f", decision.ConsensusLevel)
	}
	if len(decision.ContributingStrategies) != 3 {
		t.Fatalf("expected 3 contributors, got %v", decision.ContributingStrategies)
	}
	for _, id := range decision.ContributingStrategies {
		if id == "delta" {
			t.Fatal("inactive strategy must not contribute")
		}
	}
}

func TestConsolidate_BelowThreshold(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.6, MinAgreement: 2})

	signals := []signal.StrategySignal{
		freshSignal("alpha", signal.ActionBuy, 0.9, 1.0),
		freshSignal("beta", signal.ActionSell, 0.2, 0.5),
		freshSignal("gamma", signal.ActionHold, 0.2, 0.5),
	}
	weights := map[string]float64{"alpha": 0.4, "beta": 0.3, "gamma": 0.3}

	if _, ok := c.Consolidate(signals, weights, regime.Regime{Type: regime.Sideways}); ok {
		t.Fatal("one of three agreeing must not reach a 0.6 consensus threshold")
	}
}

func TestConsolidate_MinAgreement(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.3, MinAgreement: 2})

	signals := []signal.StrategySignal{
		freshSignal("alpha", signal.ActionBuy, 0.9, 1.0),
	}
	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	if _, ok := c.Consolidate(signals, weights, regime.Regime{Type: regime.Bull}); ok {
		t.Fatal("a single strategy must not satisfy minAgreement=2")
	}
}

func TestConsolidate_ExpiredSignalsIgnored(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.6, MinAgreement: 2})

	stale := freshSignal("alpha", signal.ActionBuy, 0.9, 1.0)
	stale.Timestamp = time.Now().UTC().Add(-time.Hour)

	signals := []signal.StrategySignal{
		stale,
		freshSignal("beta", signal.ActionBuy, 0.8, 1.0),
	}
	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	if _, ok := c.Consolidate(signals, weights, regime.Regime{Type: regime.Bull}); ok {
		t.Fatal("expired signal must not count toward consensus")
	}
}

func TestConsolidate_TieBreakByExpectedReturn(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.4, MinAgreement: 1})

	buy := freshSignal("alpha", signal.ActionBuy, 0.5, 1.0)
	buy.ExpectedReturn = 0.03
	sell := freshSignal("beta", signal.ActionSell, 0.5, 1.0)
	sell.ExpectedReturn = 0.01

	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	decision, ok := c.Consolidate([]signal.StrategySignal{buy, sell}, weights, regime.Regime{Type: regime.Sideways})
	if !ok {
		t.Fatal("expected a decision")
	}
	if decision.Action != signal.ActionBuy {
		t.Fatalf("tie must resolve to the higher expected return, got %s", decision.Action)
	}
}

func TestConsolidate_PositionSizeScaledAndCapped(t *testing.T) {
	c := NewConsolidator(Config{ConsensusThreshold: 0.5, MinAgreement: 2, MaxPositionSize: 0.05})

	a := freshSignal("alpha", signal.ActionBuy, 0.9, 1.0)
	a.PositionSizeHint = 0.4
	b := freshSignal("beta", signal.ActionBuy, 0.8, 1.0)
	b.PositionSizeHint = 0.4

	weights := map[string]float64{"alpha": 0.5, "beta": 0.5}

	decision, ok := c.Consolidate([]signal.StrategySignal{a, b}, weights, regime.Regime{Type: regime.Bull})
	if !ok {
		t.Fatal("expected a decision")
	}
	if decision.ProposedPositionSize != 0.05 {
		t.Fatalf("expected pos size capped at 0.05, got %f", decision.ProposedPositionSize)
	}
}
