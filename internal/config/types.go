package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合治理核心运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Market     MarketConfig     `mapstructure:"market"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
	Consensus  ConsensusConfig  `mapstructure:"consensus"`
	Allocator  AllocatorConfig  `mapstructure:"allocator"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Stress     StressConfig     `mapstructure:"stress"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Report     ReportConfig     `mapstructure:"report"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// MarketConfig 描述行情数据源连接信息。
type MarketConfig struct {
	Name       string      `mapstructure:"name"`
	Symbol     string      `mapstructure:"symbol"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// StrategyConfig 描述一个已注册策略引擎。
// Kind 取 trend / meanrev 时使用内置引擎，取 external 时由外部注册。
// RegimeFitness 给出策略在各市场状态下的适应度（0-1），未列出的状态取默认值0.5。
type StrategyConfig struct {
	ID            string             `mapstructure:"id"`
	Name          string             `mapstructure:"name"`
	Kind          string             `mapstructure:"kind"`
	Enabled       bool               `mapstructure:"enabled"`
	RegimeFitness map[string]float64 `mapstructure:"regime_fitness"`
}

// ConsensusConfig 控制信号合并的共识门槛。
type ConsensusConfig struct {
	Threshold     float64       `mapstructure:"threshold"`
	MinAgreement  int           `mapstructure:"min_agreement"`
	SignalTimeout time.Duration `mapstructure:"signal_timeout"`
}

// AllocatorConfig 控制绩效权重的合成比例。
type AllocatorConfig struct {
	WinRateWeight  float64 `mapstructure:"win_rate_weight"`
	SharpeWeight   float64 `mapstructure:"sharpe_weight"`
	DrawdownWeight float64 `mapstructure:"drawdown_weight"`
}

// RiskConfig 选择风险档位并允许覆盖单项限额。
// Profile 取 conservative / moderate / aggressive，覆盖值为0时使用档位默认。
type RiskConfig struct {
	Profile            string  `mapstructure:"profile"`
	MaxPositionSize    float64 `mapstructure:"max_position_size"`
	MaxLeverage        float64 `mapstructure:"max_leverage"`
	MaxDrawdown        float64 `mapstructure:"max_drawdown"`
	DailyVaR           float64 `mapstructure:"daily_var"`
	CorrelationLimit   float64 `mapstructure:"correlation_limit"`
	ConcentrationLimit float64 `mapstructure:"concentration_limit"`
}

// StressScenarioConfig 描述一个压力测试情景。
type StressScenarioConfig struct {
	Name                 string        `mapstructure:"name"`
	MarketShock          float64       `mapstructure:"market_shock"`
	VolatilityMultiplier float64       `mapstructure:"volatility_multiplier"`
	CorrelationIncrease  float64       `mapstructure:"correlation_increase"`
	LiquidityReduction   float64       `mapstructure:"liquidity_reduction"`
	TimeHorizon          time.Duration `mapstructure:"time_horizon"`
	Seed                 int64         `mapstructure:"seed"`
}

// StressConfig 控制压力测试情景集。
type StressConfig struct {
	TopN      int                    `mapstructure:"top_n"`
	Scenarios []StressScenarioConfig `mapstructure:"scenarios"`
}

// ComplianceRuleConfig 描述一条合规规则。
type ComplianceRuleConfig struct {
	ID              string             `mapstructure:"id"`
	Category        string             `mapstructure:"category"`
	Enabled         bool               `mapstructure:"enabled"`
	Severity        string             `mapstructure:"severity"`
	ViolationAction string             `mapstructure:"violation_action"`
	Parameters      map[string]float64 `mapstructure:"parameters"`
}

// ComplianceConfig 描述启用的合规规则集。
type ComplianceConfig struct {
	Rules []ComplianceRuleConfig `mapstructure:"rules"`
}

// AlertConfig 控制告警日志保留量。
type AlertConfig struct {
	Retention int `mapstructure:"retention"`
}

// ExecutionConfig 控制执行端行为。InitialEquity 仅在模拟模式下使用。
type ExecutionConfig struct {
	Simulation    bool    `mapstructure:"simulation"`
	Symbol        string  `mapstructure:"symbol"`
	Slippage      float64 `mapstructure:"slippage"`
	TimeInForce   string  `mapstructure:"time_in_force"`
	InitialEquity float64 `mapstructure:"initial_equity"`
}

// ReportConfig 控制治理日报与大模型摘要。
type ReportConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制各周期循环的节奏。
type SchedulerConfig struct {
	DecisionInterval  time.Duration `mapstructure:"decision_interval"`
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	RebalanceInterval time.Duration `mapstructure:"rebalance_interval"`
	StressInterval    time.Duration `mapstructure:"stress_interval"`
	MonitorPort       int           `mapstructure:"monitor_port"`
}

var validStrategyKinds = map[string]struct{}{
	"trend":    {},
	"meanrev":  {},
	"external": {},
}

var validRiskProfiles = map[string]struct{}{
	"conservative": {},
	"moderate":     {},
	"aggressive":   {},
}

var validViolationActions = map[string]struct{}{
	"warn":   {},
	"block":  {},
	"report": {},
}

var validRuleSeverities = map[string]struct{}{
	"low":      {},
	"medium":   {},
	"high":     {},
	"critical": {},
}

// Validate 对配置进行基本校验。配置错误是唯一在启动期致命的错误类别。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Market.Name == "" {
		err = multierr.Append(err, errors.New("market.name 不能为空"))
	}
	if c.Market.Symbol == "" {
		err = multierr.Append(err, errors.New("market.symbol 不能为空"))
	}
	if c.Market.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("market.retry.max_attempts 必须大于0"))
	}
	if c.Market.Retry.MinDelay <= 0 || c.Market.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("market.retry.delay 必须为正"))
	}
	if c.Market.Retry.MinDelay > c.Market.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("market.retry.min_delay 不能大于 max_delay"))
	}

	if len(c.Strategies) == 0 {
		err = multierr.Append(err, errors.New("strategies 至少需要注册一个策略"))
	}
	seen := make(map[string]struct{}, len(c.Strategies))
	for i, s := range c.Strategies {
		if strings.TrimSpace(s.ID) == "" {
			err = multierr.Append(err, fmt.Errorf("strategies[%d].id 不能为空", i))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("strategies 存在重复 id: %s", s.ID))
		}
		seen[s.ID] = struct{}{}
		if _, ok := validStrategyKinds[strings.ToLower(s.Kind)]; !ok {
			err = multierr.Append(err, fmt.Errorf("strategies[%s].kind 取值非法: %s", s.ID, s.Kind))
		}
		for regime, fit := range s.RegimeFitness {
			if fit < 0 || fit > 1 {
				err = multierr.Append(err, fmt.Errorf("strategies[%s].regime_fitness[%s] 必须位于[0,1]", s.ID, regime))
			}
		}
	}

	if c.Consensus.Threshold <= 0 || c.Consensus.Threshold > 1 {
		err = multierr.Append(err, errors.New("consensus.threshold 必须位于(0,1]"))
	}
	if c.Consensus.MinAgreement < 1 {
		err = multierr.Append(err, errors.New("consensus.min_agreement 必须不小于1"))
	}
	if c.Consensus.SignalTimeout <= 0 {
		err = multierr.Append(err, errors.New("consensus.signal_timeout 必须大于0"))
	}

	if c.Allocator.WinRateWeight < 0 || c.Allocator.SharpeWeight < 0 || c.Allocator.DrawdownWeight < 0 {
		err = multierr.Append(err, errors.New("allocator 各权重不能为负"))
	}
	if c.Allocator.WinRateWeight+c.Allocator.SharpeWeight+c.Allocator.DrawdownWeight <= 0 {
		err = multierr.Append(err, errors.New("allocator 权重之和必须大于0"))
	}

	if _, ok := validRiskProfiles[strings.ToLower(c.Risk.Profile)]; !ok {
		err = multierr.Append(err, fmt.Errorf("risk.profile 取值非法: %s", c.Risk.Profile))
	}
	for name, v := range map[string]float64{
		"risk.max_position_size":   c.Risk.MaxPositionSize,
		"risk.max_leverage":        c.Risk.MaxLeverage,
		"risk.max_drawdown":        c.Risk.MaxDrawdown,
		"risk.daily_var":           c.Risk.DailyVaR,
		"risk.correlation_limit":   c.Risk.CorrelationLimit,
		"risk.concentration_limit": c.Risk.ConcentrationLimit,
	} {
		if v < 0 {
			err = multierr.Append(err, fmt.Errorf("%s 不能为负", name))
		}
	}

	if c.Stress.TopN <= 0 {
		err = multierr.Append(err, errors.New("stress.top_n 必须大于0"))
	}
	for i, sc := range c.Stress.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("stress.scenarios[%d].name 不能为空", i))
		}
		if sc.MarketShock < -1 || sc.MarketShock > 1 {
			err = multierr.Append(err, fmt.Errorf("stress.scenarios[%s].market_shock 必须位于[-1,1]", sc.Name))
		}
		if sc.VolatilityMultiplier < 0 {
			err = multierr.Append(err, fmt.Errorf("stress.scenarios[%s].volatility_multiplier 不能为负", sc.Name))
		}
		if sc.LiquidityReduction < 0 || sc.LiquidityReduction > 1 {
			err = multierr.Append(err, fmt.Errorf("stress.scenarios[%s].liquidity_reduction 必须位于[0,1]", sc.Name))
		}
	}

	ruleIDs := make(map[string]struct{}, len(c.Compliance.Rules))
	for i, rule := range c.Compliance.Rules {
		if strings.TrimSpace(rule.ID) == "" {
			err = multierr.Append(err, fmt.Errorf("compliance.rules[%d].id 不能为空", i))
			continue
		}
		if _, dup := ruleIDs[rule.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("compliance.rules 存在重复 id: %s", rule.ID))
		}
		ruleIDs[rule.ID] = struct{}{}
		if _, ok := validViolationActions[strings.ToLower(rule.ViolationAction)]; !ok {
			err = multierr.Append(err, fmt.Errorf("compliance.rules[%s].violation_action 取值非法: %s", rule.ID, rule.ViolationAction))
		}
		if _, ok := validRuleSeverities[strings.ToLower(rule.Severity)]; !ok {
			err = multierr.Append(err, fmt.Errorf("compliance.rules[%s].severity 取值非法: %s", rule.ID, rule.Severity))
		}
	}

	if c.Alert.Retention <= 0 {
		err = multierr.Append(err, errors.New("alert.retention 必须大于0"))
	}

	if c.Execution.Slippage < 0 || c.Execution.Slippage > 0.2 {
		err = multierr.Append(err, errors.New("execution.slippage 应位于[0,0.2]"))
	}
	if !c.Execution.Simulation && c.Execution.Symbol == "" {
		err = multierr.Append(err, errors.New("execution.symbol 在非模拟模式下不能为空"))
	}
	if c.Execution.Simulation && c.Execution.InitialEquity <= 0 {
		err = multierr.Append(err, errors.New("execution.initial_equity 在模拟模式下必须大于0"))
	}

	if c.Report.Enabled {
		if c.Report.APIKey == "" {
			err = multierr.Append(err, errors.New("report.api_key 在启用日报摘要时不能为空"))
		}
		if c.Report.Model == "" {
			err = multierr.Append(err, errors.New("report.model 不能为空"))
		}
		if c.Report.Timeout <= 0 {
			err = multierr.Append(err, errors.New("report.timeout 必须大于0"))
		}
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Scheduler.DecisionInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.decision_interval 必须大于0"))
	}
	if c.Scheduler.MonitorInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.monitor_interval 必须大于0"))
	}
	if c.Scheduler.RebalanceInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.rebalance_interval 必须大于0"))
	}
	if c.Scheduler.StressInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.stress_interval 必须大于0"))
	}
	if c.Scheduler.MonitorInterval < c.Scheduler.DecisionInterval {
		err = multierr.Append(err, errors.New("scheduler.monitor_interval 不应小于 decision_interval"))
	}
	if c.Consensus.SignalTimeout >= c.Scheduler.DecisionInterval {
		err = multierr.Append(err, errors.New("consensus.signal_timeout 必须小于 decision_interval"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

// ActiveStrategyIDs 返回启用策略的 id 列表，顺序与配置一致。
func (c *Config) ActiveStrategyIDs() []string {
	ids := make([]string, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.Enabled {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
