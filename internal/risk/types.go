package risk

import (
	"time"

	"hydra-core/internal/config"
)

// Profile 是风险限额档位。
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileModerate     Profile = "moderate"
	ProfileAggressive   Profile = "aggressive"
)

// Limit 是一组生效的风险限额。
type Limit struct {
	Profile            Profile `json:"profile"`
	MaxPositionSize    float64 `json:"max_position_size"`
	MaxLeverage        float64 `json:"max_leverage"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	DailyVaR           float64 `json:"daily_var"`
	CorrelationLimit   float64 `json:"correlation_limit"`
	ConcentrationLimit float64 `json:"concentration_limit"`
}

// 各档位基准限额。
var profileDefaults = map[Profile]Limit{
	ProfileConservative: {
		MaxPositionSize:    0.05,
		MaxLeverage:        1.5,
		MaxDrawdown:        0.10,
		DailyVaR:           0.02,
		CorrelationLimit:   0.5,
		ConcentrationLimit: 0.25,
	},
	ProfileModerate: {
		MaxPositionSize:    0.10,
		MaxLeverage:        3.0,
		MaxDrawdown:        0.20,
		DailyVaR:           0.04,
		CorrelationLimit:   0.7,
		ConcentrationLimit: 0.40,
	},
	ProfileAggressive: {
		MaxPositionSize:    0.20,
		MaxLeverage:        5.0,
		MaxDrawdown:        0.35,
		DailyVaR:           0.08,
		CorrelationLimit:   0.85,
		ConcentrationLimit: 0.60,
	},
}

// LimitFromConfig 取档位默认限额并套用非零覆盖值。
// 未知档位按 moderate 处理。
func LimitFromConfig(cfg config.RiskConfig) Limit {
	profile := Profile(cfg.Profile)
	limit, ok := profileDefaults[profile]
	if !ok {
		profile = ProfileModerate
		limit = profileDefaults[profile]
	}
	limit.Profile = profile

	if cfg.MaxPositionSize > 0 {
		limit.MaxPositionSize = cfg.MaxPositionSize
	}
	if cfg.MaxLeverage > 0 {
		limit.MaxLeverage = cfg.MaxLeverage
	}
	if cfg.MaxDrawdown > 0 {
		limit.MaxDrawdown = cfg.MaxDrawdown
	}
	if cfg.DailyVaR > 0 {
		limit.DailyVaR = cfg.DailyVaR
	}
	if cfg.CorrelationLimit > 0 {
		limit.CorrelationLimit = cfg.CorrelationLimit
	}
	if cfg.ConcentrationLimit > 0 {
		limit.ConcentrationLimit = cfg.ConcentrationLimit
	}
	return limit
}

// Position 是一个持仓敞口，Returns 为该标的近期收益序列。
type Position struct {
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	Value    float64   `json:"value"`
	Returns  []float64 `json:"-"`
}

// PortfolioSnapshot 是一次风险巡检的组合度量结果。
type PortfolioSnapshot struct {
	Equity          float64   `json:"equity"`
	Leverage        float64   `json:"leverage"`
	DailyVaR        float64   `json:"daily_var"`
	VaR95           float64   `json:"var_95"`
	VaR99           float64   `json:"var_99"`
	CurrentDrawdown float64   `json:"current_drawdown"`
	Concentration   float64   `json:"concentration"`
	Correlation     float64   `json:"correlation"`
	ObservedAt      time.Time `json:"observed_at"`
}

// Severity 按占用比例分级。
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// LimitAction 是单个限额维度的处置动作。
type LimitAction string

const (
	ActionMonitor   LimitAction = "MONITOR"
	ActionWarn      LimitAction = "WARN"
	ActionBlock     LimitAction = "BLOCK"
	ActionLiquidate LimitAction = "LIQUIDATE"
)

// RiskLimit 是一个维度在某次巡检时的判定结果，只替换不修改。
type RiskLimit struct {
	Type         string      `json:"type"`
	Threshold    float64     `json:"threshold"`
	CurrentValue float64     `json:"current_value"`
	Utilization  float64     `json:"utilization"`
	Breached     bool        `json:"breached"`
	Severity     Severity    `json:"severity"`
	Action       LimitAction `json:"action"`
	Reason       string      `json:"reason"`
	EvaluatedAt  time.Time   `json:"evaluated_at"`
}

// Verdict 是准入判定的结论。
type Verdict string

const (
	VerdictAllow     Verdict = "ALLOW"
	VerdictWarn      Verdict = "WARN"
	VerdictBlock     Verdict = "BLOCK"
	VerdictLiquidate Verdict = "LIQUIDATE"
)
