package compliance

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"hydra-core/internal/risk"
)

// evaluator 对单条规则求值。返回 nil 表示合规。
type evaluator func(rule Rule, positions []risk.Position, snap risk.PortfolioSnapshot) (*Violation, error)

// Engine 逐条评估启用的合规规则。单条规则求值失败只记日志，
// 不影响其余规则。
type Engine struct {
	rules      []Rule
	evaluators map[string]evaluator
	logger     *zap.Logger
}

// NewEngine 创建合规引擎。
func NewEngine(rules []Rule, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rules:  rules,
		logger: logger,
		evaluators: map[string]evaluator{
			"max_position_count":  checkPositionCount,
			"max_single_exposure": checkSingleExposure,
			"max_leverage":        checkLeverage,
			"max_daily_var":       checkDailyVaR,
			"max_concentration":   checkConcentration,
		},
	}
}

// Check 评估全部启用规则并返回新产生的违规。
func (e *Engine) Check(positions []risk.Position, snap risk.PortfolioSnapshot) []Violation {
	var violations []Violation
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}

		eval, ok := e.evaluators[rule.Category]
		if !ok {
			e.logger.Warn("未知的合规规则类别，跳过",
				zap.String("rule_id", rule.ID),
				zap.String("category", rule.Category))
			continue
		}

		violation, err := eval(rule, positions, snap)
		if err != nil {
			e.logger.Warn("合规规则求值失败，继续评估其余规则",
				zap.String("rule_id", rule.ID),
				zap.Error(err))
			continue
		}
		if violation != nil {
			violation.RuleID = rule.ID
			violation.Severity = rule.Severity
			violation.Status = StatusOpen
			violation.Timestamp = time.Now().UTC()
			violations = append(violations, *violation)
		}
	}
	return violations
}

// RuleByID 查询规则定义，用于确定违规处置方式。
func (e *Engine) RuleByID(id string) (Rule, bool) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

func requireParam(rule Rule, key string) (float64, error) {
	v, ok := rule.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("规则 %s 缺少参数 %s", rule.ID, key)
	}
	return v, nil
}

func checkPositionCount(rule Rule, positions []risk.Position, _ risk.PortfolioSnapshot) (*Violation, error) {
	limit, err := requireParam(rule, "limit")
	if err != nil {
		return nil, err
	}
	if float64(len(positions)) <= limit {
		return nil, nil
	}
	entities := make([]string, 0, len(positions))
	for _, p := range positions {
		entities = append(entities, p.Symbol)
	}
	return &Violation{
		CurrentValue:     float64(len(positions)),
		AllowedValue:     limit,
		AffectedEntities: entities,
	}, nil
}

func checkSingleExposure(rule Rule, positions []risk.Position, snap risk.PortfolioSnapshot) (*Violation, error) {
	limit, err := requireParam(rule, "limit")
	if err != nil {
		return nil, err
	}
	if snap.Equity <= 0 {
		return nil, fmt.Errorf("权益为零，无法计算敞口占比")
	}

	var worst *Violation
	for _, p := range positions {
		share := math.Abs(p.Value) / snap.Equity
		if share <= limit {
			continue
		}
		if worst == nil || share > worst.CurrentValue {
			worst = &Violation{
				CurrentValue:     share,
				AllowedValue:     limit,
				AffectedEntities: []string{p.Symbol},
			}
		}
	}
	return worst, nil
}

func checkLeverage(rule Rule, _ []risk.Position, snap risk.PortfolioSnapshot) (*Violation, error) {
	limit, err := requireParam(rule, "limit")
	if err != nil {
		return nil, err
	}
	if snap.Leverage <= limit {
		return nil, nil
	}
	return &Violation{CurrentValue: snap.Leverage, AllowedValue: limit}, nil
}

func checkDailyVaR(rule Rule, _ []risk.Position, snap risk.PortfolioSnapshot) (*Violation, error) {
	limit, err := requireParam(rule, "limit")
	if err != nil {
		return nil, err
	}
	if snap.DailyVaR <= limit {
		return nil, nil
	}
	return &Violation{CurrentValue: snap.DailyVaR, AllowedValue: limit}, nil
}

func checkConcentration(rule Rule, _ []risk.Position, snap risk.PortfolioSnapshot) (*Violation, error) {
	limit, err := requireParam(rule, "limit")
	if err != nil {
		return nil, err
	}
	if snap.Concentration <= limit {
		return nil, nil
	}
	return &Violation{CurrentValue: snap.Concentration, AllowedValue: limit}, nil
}
