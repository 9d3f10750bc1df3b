package stress

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"hydra-core/internal/risk"
)

// Scenario 描述一个压力情景。Seed 为 0 时由情景名派生，保证可复现。
type Scenario struct {
	Name                 string        `json:"name"`
	MarketShock          float64       `json:"market_shock"`
	VolatilityMultiplier float64       `json:"volatility_multiplier"`
	CorrelationIncrease  float64       `json:"correlation_increase"`
	LiquidityReduction   float64       `json:"liquidity_reduction"`
	TimeHorizon          time.Duration `json:"time_horizon"`
	Seed                 int64         `json:"seed"`
}

// PositionLoss 是单个持仓在情景下的损失估计。
type PositionLoss struct {
	Symbol      string  `json:"symbol"`
	Loss        float64 `json:"loss"`
	MarginalVaR float64 `json:"marginal_var"`
}

// Result 是一次压力模拟的结果。
type Result struct {
	Scenario             string         `json:"scenario"`
	TotalLoss            float64        `json:"total_loss"`
	LiquidityRequirement float64        `json:"liquidity_requirement"`
	WorstCasePositions   []PositionLoss `json:"worst_case_positions"`
	RanAt                time.Time      `json:"ran_at"`
}

// 波动扰动占波动倍数的比例。
const perturbationScale = 0.1

// Simulator 对持仓组合施加情景冲击。
type Simulator struct {
	topN int
}

// NewSimulator 创建压力模拟器，topN 非正时取 5。
func NewSimulator(topN int) *Simulator {
	if topN <= 0 {
		topN = 5
	}
	return &Simulator{topN: topN}
}

// Run 对每个持仓独立施加市场冲击与有界随机波动扰动。
// 固定种子下结果完全可复现。
func (s *Simulator) Run(positions []risk.Position, scenario Scenario) Result {
	rng := rand.New(rand.NewSource(scenarioSeed(scenario)))

	losses := make([]PositionLoss, 0, len(positions))
	totalLoss := 0.0
	for _, p := range positions {
		// 扰动落在 ±volatilityMultiplier×0.1 以内。
		perturbation := (rng.Float64()*2 - 1) * scenario.VolatilityMultiplier * perturbationScale
		stressed := p.Value * (1 + scenario.MarketShock + perturbation)
		loss := p.Value - stressed
		totalLoss += loss

		losses = append(losses, PositionLoss{
			Symbol:      p.Symbol,
			Loss:        loss,
			MarginalVaR: marginalVaR(p, scenario),
		})
	}

	sort.Slice(losses, func(i, j int) bool {
		if losses[i].Loss != losses[j].Loss {
			return losses[i].Loss > losses[j].Loss
		}
		return losses[i].Symbol < losses[j].Symbol
	})
	if len(losses) > s.topN {
		losses = losses[:s.topN]
	}

	return Result{
		Scenario:             scenario.Name,
		TotalLoss:            totalLoss,
		LiquidityRequirement: math.Abs(totalLoss) * scenario.LiquidityReduction,
		WorstCasePositions:   losses,
		RanAt:                time.Now().UTC(),
	}
}

// marginalVaR 以持仓历史波动放大后的尾部损失估计边际在险价值。
func marginalVaR(p risk.Position, scenario Scenario) float64 {
	vol := sampleVolatility(p.Returns)
	stressedVol := vol * math.Max(scenario.VolatilityMultiplier, 1.0)
	corr := math.Min(1.0, 0.5+scenario.CorrelationIncrease)
	return math.Abs(p.Value) * stressedVol * 1.645 * corr
}

func sampleVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0.02
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

// scenarioSeed 在未显式配置种子时由情景名哈希派生。
func scenarioSeed(scenario Scenario) int64 {
	if scenario.Seed != 0 {
		return scenario.Seed
	}
	h := fnv.New64a()
	h.Write([]byte(scenario.Name))
	return int64(h.Sum64())
}
