package signal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action 表示策略给出的交易方向。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskLevel 表示策略自评的风险等级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// StrategySignal 是策略引擎产出的不可变交易意见。
// 超过 ValidityWindow 后信号过期，合并时会被丢弃。
type StrategySignal struct {
	StrategyID       string        `json:"strategy_id"`
	Action           Action        `json:"action"`
	Confidence       float64       `json:"confidence"`
	Strength         float64       `json:"strength"`
	ExpectedReturn   float64       `json:"expected_return"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	PositionSizeHint float64       `json:"position_size_hint"`
	Timestamp        time.Time     `json:"timestamp"`
	ValidityWindow   time.Duration `json:"validity_window"`
}

// Expired 判断信号在给定时刻是否已过期。
func (s StrategySignal) Expired(now time.Time) bool {
	if s.ValidityWindow <= 0 {
		return false
	}
	return now.Sub(s.Timestamp) > s.ValidityWindow
}

// Validate 校验信号字段合法性。
func (s StrategySignal) Validate() error {
	if strings.TrimSpace(s.StrategyID) == "" {
		return errors.New("signal: strategy_id 不能为空")
	}
	switch s.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("signal: action 取值非法: %s", s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal: confidence 必须位于[0,1]: %f", s.Confidence)
	}
	if s.Strength < 0 || s.Strength > 1 {
		return fmt.Errorf("signal: strength 必须位于[0,1]: %f", s.Strength)
	}
	if s.PositionSizeHint < 0 {
		return fmt.Errorf("signal: position_size_hint 不能为负: %f", s.PositionSizeHint)
	}
	switch s.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh, "":
	default:
		return fmt.Errorf("signal: risk_level 取值非法: %s", s.RiskLevel)
	}
	return nil
}
