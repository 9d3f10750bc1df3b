package monitor

import (
	"time"

	"hydra-core/internal/alert"
	"hydra-core/internal/allocator"
	"hydra-core/internal/compliance"
	"hydra-core/internal/ensemble"
	"hydra-core/internal/execution"
	"hydra-core/internal/regime"
	"hydra-core/internal/risk"
	"hydra-core/internal/signal"
	"hydra-core/internal/stress"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSignals        EventType = "signals"
	EventDecision       EventType = "decision"
	EventAdmission      EventType = "admission"
	EventRiskEvaluation EventType = "risk_evaluation"
	EventRebalance      EventType = "rebalance"
	EventStressTest     EventType = "stress_test"
	EventCompliance     EventType = "compliance"
	EventAlert          EventType = "alert"
	EventExecution      EventType = "execution"
	EventError          EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalsPayload 记录一轮采集到的策略信号。
type SignalsPayload struct {
	Signals []signal.StrategySignal `json:"signals"`
	Regime  regime.Regime           `json:"regime"`
}

// DecisionPayload 记录共识决策。
type DecisionPayload struct {
	Decision ensemble.Decision `json:"decision"`
}

// AdmissionPayload 记录准入判定。
type AdmissionPayload struct {
	Verdict  risk.Verdict      `json:"verdict"`
	Decision ensemble.Decision `json:"decision"`
}

// RiskEvaluationPayload 记录限额巡检结果。
type RiskEvaluationPayload struct {
	Snapshot risk.PortfolioSnapshot `json:"snapshot"`
	Limits   []risk.RiskLimit       `json:"limits"`
}

// RebalancePayload 记录一次资金再平衡。
type RebalancePayload struct {
	Allocation allocator.Allocation `json:"allocation"`
	Regime     regime.Regime        `json:"regime"`
}

// StressTestPayload 记录压力测试结果。
type StressTestPayload struct {
	Result stress.Result `json:"result"`
}

// CompliancePayload 记录合规违规。
type CompliancePayload struct {
	Violations []compliance.Violation `json:"violations"`
}

// AlertPayload 记录已分发的告警。
type AlertPayload struct {
	Alert alert.Alert `json:"alert"`
}

// ExecutionPayload 记录订单执行结果。
type ExecutionPayload struct {
	Fill execution.Fill `json:"fill"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
