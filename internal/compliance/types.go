package compliance

import (
	"time"

	"hydra-core/internal/config"
)

// ViolationAction 是规则触发后的处置方式。
type ViolationAction string

const (
	ActionWarn   ViolationAction = "warn"
	ActionBlock  ViolationAction = "block"
	ActionReport ViolationAction = "report"
)

// Status 是违规记录的生命周期状态，只能由运营人员显式推进。
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Rule 是一条启用中的合规规则。严重级别由规则自身定义，
// 与风险治理器的占用分级无关。
type Rule struct {
	ID              string
	Category        string
	Enabled         bool
	Severity        string
	ViolationAction ViolationAction
	Parameters      map[string]float64
}

// RuleFromConfig 由配置构造规则。
func RuleFromConfig(cfg config.ComplianceRuleConfig) Rule {
	return Rule{
		ID:              cfg.ID,
		Category:        cfg.Category,
		Enabled:         cfg.Enabled,
		Severity:        cfg.Severity,
		ViolationAction: ViolationAction(cfg.ViolationAction),
		Parameters:      cfg.Parameters,
	}
}

// Violation 是一次规则触发的记录。
type Violation struct {
	ID               int64     `json:"id"`
	RuleID           string    `json:"rule_id"`
	Timestamp        time.Time `json:"timestamp"`
	Severity         string    `json:"severity"`
	CurrentValue     float64   `json:"current_value"`
	AllowedValue     float64   `json:"allowed_value"`
	AffectedEntities []string  `json:"affected_entities"`
	Status           Status    `json:"status"`
}
