package allocator

import (
	"math"
	"time"

	"hydra-core/internal/regime"
)

const (
	// 夏普折算到 [0,1] 的上限，超过按 1 计。
	sharpeScale = 2.0
	// 成交样本少于该数量时绩效分取中性值。
	minTrades = 10
	// 样本不足时的中性绩效分。
	neutralScore = 0.5
	// 市况适配表缺省项的适配度。
	defaultFitness = 0.5
	// 归一化后权重和允许的偏差。
	sumTolerance = 1e-6
)

// Score 是一次打分的构成。Final 参与归一化，三个分量随分配结果
// 一起留档，便于追溯每个策略为何拿到当前权重。
type Score struct {
	Performance float64
	Regime      float64
	Risk        float64
	Final       float64
}

// ScoreFunc 为单个启用策略打分，Final 须非负。
// 合成公式属于可替换策略，不是定论。
type ScoreFunc func(s Strategy, snap PerformanceSnapshot, current regime.Regime) Score

// Config 是绩效合成分的三个分量权重。Score 非空时替换默认打分。
type Config struct {
	WinRateWeight  float64
	SharpeWeight   float64
	DrawdownWeight float64
	Score          ScoreFunc
}

// Strategy 描述一个参与分配的策略。
type Strategy struct {
	ID            string
	Enabled       bool
	RegimeFitness map[string]float64
}

// StrategyAllocation 记录单个策略在一次再平衡中的权重构成。
type StrategyAllocation struct {
	PerformanceWeight float64 `json:"performance_weight"`
	RegimeWeight      float64 `json:"regime_weight"`
	RiskWeight        float64 `json:"risk_weight"`
	FinalWeight       float64 `json:"final_weight"`
	TargetAllocation  float64 `json:"target_allocation"`
	Active            bool    `json:"active"`
}

// Allocation 是一次再平衡的输出，目标配比按策略ID索引。
type Allocation struct {
	Weights      map[string]float64            `json:"weights"`
	Details      map[string]StrategyAllocation `json:"details"`
	RebalancedAt time.Time                     `json:"rebalanced_at"`
}

// Allocator 依据绩效、市况适配度与风险权重计算资金分配。
type Allocator struct {
	cfg        Config
	strategies []Strategy
	scoreFn    ScoreFunc
}

// New 创建分配器。分量权重未配置时退回 0.3/0.3/0.4。
func New(cfg Config, strategies []Strategy) *Allocator {
	if cfg.WinRateWeight <= 0 && cfg.SharpeWeight <= 0 && cfg.DrawdownWeight <= 0 {
		cfg.WinRateWeight, cfg.SharpeWeight, cfg.DrawdownWeight = 0.3, 0.3, 0.4
	}
	a := &Allocator{cfg: cfg, strategies: strategies}
	a.scoreFn = cfg.Score
	if a.scoreFn == nil {
		a.scoreFn = a.score
	}
	return a
}

// Rebalance 对相同输入始终产生相同输出。启用策略的权重和为 1，
// 禁用策略恒为 0；所有合成分均为 0 时退回等权分配。
func (a *Allocator) Rebalance(perf map[string]PerformanceSnapshot, current regime.Regime) Allocation {
	now := time.Now().UTC()
	weights := make(map[string]float64, len(a.strategies))
	details := make(map[string]StrategyAllocation, len(a.strategies))

	active := make([]Strategy, 0, len(a.strategies))
	for _, s := range a.strategies {
		if !s.Enabled {
			weights[s.ID] = 0
			details[s.ID] = StrategyAllocation{}
			continue
		}
		active = append(active, s)
	}
	if len(active) == 0 {
		return Allocation{Weights: weights, Details: details, RebalancedAt: now}
	}

	total := 0.0
	for _, s := range active {
		score := a.scoreFn(s, perf[s.ID], current)
		details[s.ID] = StrategyAllocation{
			PerformanceWeight: score.Performance,
			RegimeWeight:      score.Regime,
			RiskWeight:        score.Risk,
			FinalWeight:       score.Final,
			Active:            true,
		}
		weights[s.ID] = score.Final
		total += score.Final
	}

	if total <= 0 {
		// 无可用绩效时等权。
		equal := 1.0 / float64(len(active))
		for _, s := range active {
			weights[s.ID] = equal
			d := details[s.ID]
			d.TargetAllocation = equal
			details[s.ID] = d
		}
		return Allocation{Weights: weights, Details: details, RebalancedAt: now}
	}

	for _, s := range active {
		weights[s.ID] /= total
		d := details[s.ID]
		d.TargetAllocation = weights[s.ID]
		details[s.ID] = d
	}
	return Allocation{Weights: weights, Details: details, RebalancedAt: now}
}

// score 取绩效合成分、市况适配度与风险权重三者的均值。
func (a *Allocator) score(s Strategy, snap PerformanceSnapshot, current regime.Regime) Score {
	composite := neutralScore
	if snap.TotalTrades >= minTrades {
		normSharpe := clamp01(snap.Sharpe / sharpeScale)
		invDrawdown := 1.0 / (1.0 + snap.MaxDrawdown)
		composite = clamp01(a.cfg.WinRateWeight*snap.WinRate +
			a.cfg.SharpeWeight*normSharpe +
			a.cfg.DrawdownWeight*invDrawdown)
	}

	fitness := defaultFitness
	if f, ok := s.RegimeFitness[string(current.Type)]; ok {
		fitness = f
	}

	riskWeight := 1.0 / (1.0 + snap.MaxDrawdown)

	return Score{
		Performance: composite,
		Regime:      fitness,
		Risk:        riskWeight,
		Final:       (composite + fitness + riskWeight) / 3.0,
	}
}

// ValidateSum 校验权重是否落在单纯形上。
func ValidateSum(weights map[string]float64) bool {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return false
		}
		sum += w
	}
	return math.Abs(sum-1.0) <= sumTolerance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
