package feature

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"hydra-core/internal/market"
)

// 指标计算所需的最少K线数量。
const minCandles = 60

// 样本不足时使用的默认波动率。
const fallbackVolatility = 0.02

// Vector 是市场状态检测的输入特征向量。
// 各分量均为相对量：Trend 为均线偏离比例，Volatility 为 ATR 相对收盘价，
// VolumeRatio 为当前成交量相对20期均量，Momentum 为10期动量相对收盘价。
type Vector struct {
	Trend       float64   `json:"trend"`
	Volatility  float64   `json:"volatility"`
	VolumeRatio float64   `json:"volume_ratio"`
	Momentum    float64   `json:"momentum"`
	SampleSize  int       `json:"sample_size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Extractor 从K线序列计算特征向量。
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor 创建特征提取器。
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract 基于1小时K线计算特征向量。K线不足时返回错误，由上层回退。
func (e *Extractor) Extract(snapshot market.Snapshot) (Vector, error) {
	candles := snapshot.Candles1H
	if len(candles) < minCandles {
		return Vector{SampleSize: len(candles)}, fmt.Errorf("feature: K线样本不足: %d < %d", len(candles), minCandles)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	last := len(closes) - 1
	lastClose := closes[last]
	if lastClose <= 0 {
		return Vector{SampleSize: len(candles)}, fmt.Errorf("feature: 收盘价非法: %f", lastClose)
	}

	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	trend := 0.0
	if sma50[last] > 0 {
		trend = (sma20[last] - sma50[last]) / sma50[last]
	}

	atr := talib.Atr(highs, lows, closes, 14)
	volatility := fallbackVolatility
	if atr[last] > 0 {
		volatility = atr[last] / lastClose
	}

	volSMA := talib.Sma(volumes, 20)
	volumeRatio := 1.0
	if volSMA[last] > 0 {
		volumeRatio = volumes[last] / volSMA[last]
	}

	mom := talib.Mom(closes, 10)
	momentum := mom[last] / lastClose

	v := Vector{
		Trend:       trend,
		Volatility:  volatility,
		VolumeRatio: volumeRatio,
		Momentum:    momentum,
		SampleSize:  len(candles),
		GeneratedAt: time.Now().UTC(),
	}

	if math.IsNaN(v.Trend) || math.IsNaN(v.Volatility) || math.IsNaN(v.VolumeRatio) || math.IsNaN(v.Momentum) {
		return Vector{SampleSize: len(candles)}, fmt.Errorf("feature: 指标计算出现 NaN")
	}

	return v, nil
}
