package signal

import (
	"context"
	"math"
	"time"

	"hydra-core/internal/feature"
)

// FeatureSource 为内置策略提供最新的市场特征。
type FeatureSource interface {
	Features(ctx context.Context) (feature.Vector, error)
}

const (
	trendEntryThreshold   = 0.005
	meanRevEntryThreshold = 0.02
	baseSizeHint          = 0.1
	defaultValidity       = time.Minute
)

// TrendProvider 是内置的趋势跟随策略引擎：顺着均线偏离方向发信号。
type TrendProvider struct {
	id     string
	source FeatureSource
}

// NewTrendProvider 创建趋势策略。
func NewTrendProvider(id string, source FeatureSource) *TrendProvider {
	return &TrendProvider{id: id, source: source}
}

func (p *TrendProvider) StrategyID() string {
	return p.id
}

func (p *TrendProvider) GetSignal(ctx context.Context) (StrategySignal, error) {
	vector, err := p.source.Features(ctx)
	if err != nil {
		return StrategySignal{}, err
	}

	sig := StrategySignal{
		StrategyID:     p.id,
		Action:         ActionHold,
		Confidence:     0.3,
		Strength:       0.1,
		RiskLevel:      riskFromVolatility(vector.Volatility),
		Timestamp:      time.Now().UTC(),
		ValidityWindow: defaultValidity,
	}

	switch {
	case vector.Trend > trendEntryThreshold && vector.Momentum > 0:
		sig.Action = ActionBuy
	case vector.Trend < -trendEntryThreshold && vector.Momentum < 0:
		sig.Action = ActionSell
	default:
		return sig, nil
	}

	strength := clamp01(math.Abs(vector.Trend) / 0.03)
	sig.Strength = strength
	sig.Confidence = 0.5 + 0.4*strength
	sig.ExpectedReturn = vector.Momentum
	sig.PositionSizeHint = baseSizeHint * sig.Confidence
	return sig, nil
}

// MeanReversionProvider 是内置的均值回归策略引擎：押注极端动量的回落。
type MeanReversionProvider struct {
	id     string
	source FeatureSource
}

// NewMeanReversionProvider 创建均值回归策略。
func NewMeanReversionProvider(id string, source FeatureSource) *MeanReversionProvider {
	return &MeanReversionProvider{id: id, source: source}
}

func (p *MeanReversionProvider) StrategyID() string {
	return p.id
}

func (p *MeanReversionProvider) GetSignal(ctx context.Context) (StrategySignal, error) {
	vector, err := p.source.Features(ctx)
	if err != nil {
		return StrategySignal{}, err
	}

	sig := StrategySignal{
		StrategyID:     p.id,
		Action:         ActionHold,
		Confidence:     0.3,
		Strength:       0.1,
		RiskLevel:      riskFromVolatility(vector.Volatility),
		Timestamp:      time.Now().UTC(),
		ValidityWindow: defaultValidity,
	}

	switch {
	case vector.Momentum > meanRevEntryThreshold:
		sig.Action = ActionSell
	case vector.Momentum < -meanRevEntryThreshold:
		sig.Action = ActionBuy
	default:
		return sig, nil
	}

	excess := math.Abs(vector.Momentum) - meanRevEntryThreshold
	strength := clamp01(excess / meanRevEntryThreshold)
	sig.Strength = strength
	sig.Confidence = 0.5 + 0.3*strength
	sig.ExpectedReturn = -vector.Momentum / 2
	sig.PositionSizeHint = baseSizeHint * sig.Confidence
	return sig, nil
}

func riskFromVolatility(volatility float64) RiskLevel {
	switch {
	case volatility > 0.025:
		return RiskHigh
	case volatility > 0.012:
		return RiskMedium
	default:
		return RiskLow
	}
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
