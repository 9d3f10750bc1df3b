package risk

import (
	"fmt"
	"time"
)

// 占用比例分级边界。
const (
	mediumBand   = 0.8
	highBand     = 1.0
	criticalBand = 1.2
)

// Governor 依据限额对组合状态与候选决策做纯函数式判定，自身无状态。
// 巡检与事前准入共用同一套判定逻辑。
type Governor struct {
	limit Limit
}

// NewGovernor 创建风险治理器。
func NewGovernor(limit Limit) *Governor {
	return &Governor{limit: limit}
}

// Limit 返回当前生效限额。
func (g *Governor) Limit() Limit {
	return g.limit
}

// Evaluate 对组合快照逐维度计算占用与处置动作，相同输入恒产生相同结论。
func (g *Governor) Evaluate(snap PortfolioSnapshot) []RiskLimit {
	now := time.Now().UTC()
	return []RiskLimit{
		evaluateDimension("leverage", snap.Leverage, g.limit.MaxLeverage, now),
		evaluateDimension("daily_var", snap.DailyVaR, g.limit.DailyVaR, now),
		evaluateDimension("drawdown", snap.CurrentDrawdown, g.limit.MaxDrawdown, now),
		evaluateDimension("concentration", snap.Concentration, g.limit.ConcentrationLimit, now),
		evaluateDimension("correlation", snap.Correlation, g.limit.CorrelationLimit, now),
	}
}

// Admit 对候选决策做事前准入：任一维度要求减仓则返回减仓，
// 任一维度阻断或候选仓位超出单仓上限则拒绝，告警维度放行但降级为告警。
func (g *Governor) Admit(proposedPositionSize float64, limits []RiskLimit) Verdict {
	verdict := VerdictAllow
	for _, l := range limits {
		switch l.Action {
		case ActionLiquidate:
			return VerdictLiquidate
		case ActionBlock:
			verdict = VerdictBlock
		case ActionWarn:
			if verdict == VerdictAllow {
				verdict = VerdictWarn
			}
		}
	}
	if verdict == VerdictBlock {
		return verdict
	}

	if g.limit.MaxPositionSize > 0 && proposedPositionSize > g.limit.MaxPositionSize {
		return VerdictBlock
	}
	return verdict
}

func evaluateDimension(limitType string, current, threshold float64, now time.Time) RiskLimit {
	l := RiskLimit{
		Type:         limitType,
		Threshold:    threshold,
		CurrentValue: current,
		EvaluatedAt:  now,
	}
	if threshold > 0 {
		l.Utilization = current / threshold
	}
	l.Breached = l.Utilization > 1.0
	l.Severity = severityFor(l.Utilization)

	switch {
	case l.Breached && l.Severity == SeverityCritical:
		l.Action = ActionLiquidate
		l.Reason = fmt.Sprintf("%s 占用率 %.2f 达临界，当前 %.4f 超出阈值 %.4f，要求立即减仓", limitType, l.Utilization, current, threshold)
	case l.Breached:
		l.Action = ActionBlock
		l.Reason = fmt.Sprintf("%s 越限，当前 %.4f 超出阈值 %.4f，阻断新开仓", limitType, current, threshold)
	case l.Severity == SeverityHigh:
		l.Action = ActionWarn
		l.Reason = fmt.Sprintf("%s 占用率 %.2f 偏高，仅告警不阻断", limitType, l.Utilization)
	default:
		l.Action = ActionMonitor
		l.Reason = fmt.Sprintf("%s 占用正常", limitType)
	}
	return l
}

func severityFor(utilization float64) Severity {
	switch {
	case utilization >= criticalBand:
		return SeverityCritical
	case utilization >= highBand:
		return SeverityHigh
	case utilization >= mediumBand:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
