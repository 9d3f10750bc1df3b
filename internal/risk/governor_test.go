package risk

import (
	"testing"

	"hydra-core/internal/config"
)

func moderateLimit() Limit {
	return LimitFromConfig(config.RiskConfig{Profile: "moderate"})
}

func findLimit(t *testing.T, limits []RiskLimit, limitType string) RiskLimit {
	t.Helper()
	for _, l := range limits {
		if l.Type == limitType {
			return l
		}
	}
	t.Fatalf("limit %s not found", limitType)
	return RiskLimit{}
}

func TestEvaluate_CriticalLeverageRequiresLiquidation(t *testing.T) {
	g := NewGovernor(moderateLimit())

	// 杠杆 3.6 对上限 3.0，占用 1.2 达临界。
	limits := g.Evaluate(PortfolioSnapshot{Equity: 100000, Leverage: 3.6})

	leverage := findLimit(t, limits, "leverage")
	if !leverage.Breached {
		t.Fatal("utilization 1.2 must be breached")
	}
	if leverage.Severity != SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", leverage.Severity)
	}
	if leverage.Action != ActionLiquidate {
		t.Fatalf("expected LIQUIDATE action, got %s", leverage.Action)
	}
	if verdict := g.Admit(0.05, limits); verdict != VerdictLiquidate {
		t.Fatalf("admit must escalate to LIQUIDATE, got %s", verdict)
	}
}

func TestEvaluate_BreachBlocksWithoutCritical(t *testing.T) {
	g := NewGovernor(moderateLimit())

	// 回撤 0.21 对上限 0.20，越限但未达临界。
	limits := g.Evaluate(PortfolioSnapshot{Equity: 100000, CurrentDrawdown: 0.21})

	drawdown := findLimit(t, limits, "drawdown")
	if drawdown.Action != ActionBlock {
		t.Fatalf("expected BLOCK action, got %s", drawdown.Action)
	}
	if verdict := g.Admit(0.05, limits); verdict != VerdictBlock {
		t.Fatalf("admit must BLOCK, got %s", verdict)
	}
}

func TestEvaluate_ExactLimitWarnsOnly(t *testing.T) {
	g := NewGovernor(moderateLimit())

	// 杠杆恰好 3.0，占用 1.0：不算越限，高占用仅告警。
	limits := g.Evaluate(PortfolioSnapshot{Equity: 100000, Leverage: 3.0})

	leverage := findLimit(t, limits, "leverage")
	if leverage.Breached {
		t.Fatal("utilization exactly 1.0 must not count as breached")
	}
	if leverage.Action != ActionWarn {
		t.Fatalf("expected WARN action, got %s", leverage.Action)
	}
	if verdict := g.Admit(0.05, limits); verdict != VerdictWarn {
		t.Fatalf("warn must not block, got %s", verdict)
	}
}

func TestEvaluate_LowUtilizationMonitors(t *testing.T) {
	g := NewGovernor(moderateLimit())

	limits := g.Evaluate(PortfolioSnapshot{Equity: 100000, Leverage: 1.5, DailyVaR: 0.01})
	for _, l := range limits {
		if l.Action != ActionMonitor {
			t.Fatalf("dimension %s should only be monitored, got %s", l.Type, l.Action)
		}
	}
	if verdict := g.Admit(0.05, limits); verdict != VerdictAllow {
		t.Fatalf("expected ALLOW, got %s", verdict)
	}
}

func TestAdmit_PositionSizeCap(t *testing.T) {
	g := NewGovernor(moderateLimit())
	limits := g.Evaluate(PortfolioSnapshot{Equity: 100000, Leverage: 1.0})

	if verdict := g.Admit(0.15, limits); verdict != VerdictBlock {
		t.Fatalf("oversized position must be blocked, got %s", verdict)
	}
	if verdict := g.Admit(0.08, limits); verdict != VerdictAllow {
		t.Fatalf("within-limit size must pass, got %s", verdict)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	g := NewGovernor(moderateLimit())
	snap := PortfolioSnapshot{Equity: 50000, Leverage: 2.0, DailyVaR: 0.03}

	first := g.Evaluate(snap)
	second := g.Evaluate(snap)
	for i := range first {
		if first[i].Action != second[i].Action || first[i].Severity != second[i].Severity {
			t.Fatalf("evaluation must be deterministic: %+v vs %+v", first[i], second[i])
		}
	}
}

func TestLimitFromConfig_Overrides(t *testing.T) {
	limit := LimitFromConfig(config.RiskConfig{Profile: "conservative", MaxLeverage: 2.0})
	if limit.Profile != ProfileConservative {
		t.Fatalf("expected conservative, got %s", limit.Profile)
	}
	if limit.MaxLeverage != 2.0 {
		t.Fatalf("override must win, got %f", limit.MaxLeverage)
	}
	if limit.MaxDrawdown != 0.10 {
		t.Fatalf("untouched field must keep profile default, got %f", limit.MaxDrawdown)
	}
}

func TestMeasure_VaROrdering(t *testing.T) {
	returns := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		returns = append(returns, 0.001*float64(i%7-3))
	}
	positions := []Position{
		{Symbol: "BTC/USDT:USDT", Value: 60000, Returns: returns},
		{Symbol: "ETH/USDT:USDT", Value: 40000, Returns: returns},
	}

	snap := Measure(positions, 100000, 110000)
	if snap.VaR99 < snap.VaR95 {
		t.Fatalf("var99 must dominate var95: %f < %f", snap.VaR99, snap.VaR95)
	}
	if snap.Leverage != 1.0 {
		t.Fatalf("expected leverage 1.0, got %f", snap.Leverage)
	}
	if snap.CurrentDrawdown <= 0 {
		t.Fatalf("equity below peak must show drawdown, got %f", snap.CurrentDrawdown)
	}
	if snap.Correlation <= 0.99 {
		t.Fatalf("identical return series must correlate at 1, got %f", snap.Correlation)
	}
}

func TestMeasure_FallbackVolatility(t *testing.T) {
	positions := []Position{{Symbol: "BTC/USDT:USDT", Value: 10000}}
	snap := Measure(positions, 100000, 0)

	// 无收益样本时用兜底波动率的正态近似。
	if snap.VaR95 != 1.645*fallbackVolatility {
		t.Fatalf("expected fallback var95, got %f", snap.VaR95)
	}
	if snap.Concentration != 1.0 {
		t.Fatalf("single position concentration must be 1, got %f", snap.Concentration)
	}
}
