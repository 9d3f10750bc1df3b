package ensemble

import (
	"sort"
	"time"

	"hydra-core/internal/regime"
	"hydra-core/internal/signal"
)

// Decision 是一次共识合并的产物，仅用于审计与执行，不作持久状态。
type Decision struct {
	Action                 signal.Action    `json:"action"`
	Confidence             float64          `json:"confidence"`
	ConsensusLevel         float64          `json:"consensus_level"`
	ContributingStrategies []string         `json:"contributing_strategies"`
	ProposedPositionSize   float64          `json:"proposed_position_size"`
	ExpectedReturn         float64          `json:"expected_return"`
	RiskLevel              signal.RiskLevel `json:"risk_level"`
	Regime                 regime.Type      `json:"regime"`
	GeneratedAt            time.Time        `json:"generated_at"`
}

// Config 控制共识门槛与仓位上限。
type Config struct {
	ConsensusThreshold float64
	MinAgreement       int
	MaxPositionSize    float64
}

// Consolidator 将同周期内的多策略信号合并为单一决策。
type Consolidator struct {
	cfg Config
}

// NewConsolidator 创建合并器。
func NewConsolidator(cfg Config) *Consolidator {
	if cfg.ConsensusThreshold <= 0 {
		cfg.ConsensusThreshold = 0.6
	}
	if cfg.MinAgreement < 1 {
		cfg.MinAgreement = 2
	}
	return &Consolidator{cfg: cfg}
}

// 固定遍历顺序，保证打分与平手处理确定。
var actionOrder = []signal.Action{signal.ActionBuy, signal.ActionSell, signal.ActionHold}

type actionTally struct {
	score          float64
	expectedReturn float64
	weightSum      float64
	confidenceSum  float64
	sizeSum        float64
	returnSum      float64
	riskLevel      signal.RiskLevel
	strategies     []string
	minStrategyID  string
}

// Consolidate 按权重对信号加权投票。未达共识门槛或同意策略数不足时
// 返回 ok=false，不产生任何副作用；输入均按值复制，从不被修改。
func (c *Consolidator) Consolidate(signals []signal.StrategySignal, weights map[string]float64, reg regime.Regime) (Decision, bool) {
	now := time.Now().UTC()

	activeStrategies := 0
	for _, w := range weights {
		if w > 0 {
			activeStrategies++
		}
	}
	if activeStrategies == 0 {
		return Decision{}, false
	}

	tallies := make(map[signal.Action]*actionTally, len(actionOrder))
	for _, a := range actionOrder {
		tallies[a] = &actionTally{}
	}

	for _, sig := range signals {
		if sig.Expired(now) {
			continue
		}
		w, ok := weights[sig.StrategyID]
		if !ok || w <= 0 {
			continue
		}
		tally, ok := tallies[sig.Action]
		if !ok {
			continue
		}

		contribution := w * sig.Confidence * sig.Strength
		tally.score += contribution
		tally.weightSum += w
		tally.confidenceSum += w * sig.Confidence
		tally.sizeSum += w * sig.PositionSizeHint
		tally.returnSum += w * sig.ExpectedReturn
		tally.expectedReturn += sig.ExpectedReturn
		tally.strategies = append(tally.strategies, sig.StrategyID)
		if tally.minStrategyID == "" || sig.StrategyID < tally.minStrategyID {
			tally.minStrategyID = sig.StrategyID
		}
		if riskRank(sig.RiskLevel) > riskRank(tally.riskLevel) {
			tally.riskLevel = sig.RiskLevel
		}
	}

	winner := pickWinner(tallies)
	if winner == "" {
		return Decision{}, false
	}

	tally := tallies[winner]
	agreeCount := len(distinct(tally.strategies))
	consensusLevel := float64(agreeCount) / float64(activeStrategies)

	if consensusLevel < c.cfg.ConsensusThreshold || agreeCount < c.cfg.MinAgreement {
		return Decision{}, false
	}

	confidence := 0.0
	positionSize := 0.0
	expectedReturn := 0.0
	if tally.weightSum > 0 {
		confidence = tally.confidenceSum / tally.weightSum
		positionSize = tally.sizeSum / tally.weightSum
		expectedReturn = tally.returnSum / tally.weightSum
	}

	// 共识越低仓位越小。
	positionSize *= consensusLevel
	if c.cfg.MaxPositionSize > 0 && positionSize > c.cfg.MaxPositionSize {
		positionSize = c.cfg.MaxPositionSize
	}

	contributors := distinct(tally.strategies)
	sort.Strings(contributors)

	return Decision{
		Action:                 winner,
		Confidence:             confidence,
		ConsensusLevel:         consensusLevel,
		ContributingStrategies: contributors,
		ProposedPositionSize:   positionSize,
		ExpectedReturn:         expectedReturn,
		RiskLevel:              tally.riskLevel,
		Regime:                 reg.Type,
		GeneratedAt:            now,
	}, true
}

// pickWinner 取得分最高的动作；平手先比较聚合预期收益，再比较最小策略ID。
func pickWinner(tallies map[signal.Action]*actionTally) signal.Action {
	var winner signal.Action
	for _, a := range actionOrder {
		t := tallies[a]
		if len(t.strategies) == 0 {
			continue
		}
		if winner == "" {
			winner = a
			continue
		}
		w := tallies[winner]
		switch {
		case t.score > w.score:
			winner = a
		case t.score == w.score && t.expectedReturn > w.expectedReturn:
			winner = a
		case t.score == w.score && t.expectedReturn == w.expectedReturn && t.minStrategyID < w.minStrategyID:
			winner = a
		}
	}
	return winner
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func riskRank(level signal.RiskLevel) int {
	switch level {
	case signal.RiskHigh:
		return 3
	case signal.RiskMedium:
		return 2
	case signal.RiskLow:
		return 1
	default:
		return 0
	}
}
