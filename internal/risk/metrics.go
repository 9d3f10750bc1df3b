package risk

import (
	"math"
	"sort"
	"time"
)

const (
	// 收益样本不足时使用的兜底日波动率。
	fallbackVolatility = 0.02
	minReturnSamples   = 20
)

// Measure 从持仓敞口计算组合风险快照。peakEquity 用于当前回撤，
// 取 0 时视为无历史峰值、回撤为 0。
func Measure(positions []Position, equity, peakEquity float64) PortfolioSnapshot {
	snap := PortfolioSnapshot{
		Equity:     equity,
		ObservedAt: time.Now().UTC(),
	}
	if equity <= 0 {
		return snap
	}

	gross := 0.0
	for _, p := range positions {
		gross += math.Abs(p.Value)
	}
	snap.Leverage = gross / equity

	if peakEquity > equity && peakEquity > 0 {
		snap.CurrentDrawdown = (peakEquity - equity) / peakEquity
	}

	snap.Concentration = herfindahl(positions, gross)
	snap.Correlation = meanAbsCorrelation(positions)

	portfolio := portfolioReturns(positions, gross)
	snap.VaR95 = historicalVaR(portfolio, 0.95)
	snap.VaR99 = historicalVaR(portfolio, 0.99)
	snap.DailyVaR = snap.VaR95
	return snap
}

// historicalVaR 用历史模拟法计算给定置信度下的在险价值，结果为正数。
// 样本不足时退回 正态近似：z * 兜底波动率。
func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) < minReturnSamples {
		z := 1.645
		if confidence >= 0.99 {
			z = 2.326
		}
		return z * fallbackVolatility
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * (1 - confidence)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	loss := -sorted[idx]
	if loss < 0 {
		return 0
	}
	return loss
}

// portfolioReturns 按仓位市值加权合成组合日收益序列。
func portfolioReturns(positions []Position, gross float64) []float64 {
	if gross <= 0 {
		return nil
	}

	minLen := 0
	for _, p := range positions {
		if len(p.Returns) == 0 {
			continue
		}
		if minLen == 0 || len(p.Returns) < minLen {
			minLen = len(p.Returns)
		}
	}
	if minLen == 0 {
		return nil
	}

	out := make([]float64, minLen)
	for _, p := range positions {
		if len(p.Returns) == 0 {
			continue
		}
		w := math.Abs(p.Value) / gross
		offset := len(p.Returns) - minLen
		for i := 0; i < minLen; i++ {
			out[i] += w * p.Returns[offset+i]
		}
	}
	return out
}

// herfindahl 以仓位市值占比的平方和度量集中度，单仓组合为 1。
func herfindahl(positions []Position, gross float64) float64 {
	if gross <= 0 {
		return 0
	}
	sum := 0.0
	for _, p := range positions {
		share := math.Abs(p.Value) / gross
		sum += share * share
	}
	return sum
}

// meanAbsCorrelation 取两两皮尔逊相关系数绝对值的均值。
// 持仓不足两个或样本不足时返回 0。
func meanAbsCorrelation(positions []Position) float64 {
	series := make([][]float64, 0, len(positions))
	for _, p := range positions {
		if len(p.Returns) >= 2 {
			series = append(series, p.Returns)
		}
	}
	if len(series) < 2 {
		return 0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			r, ok := pearson(series[i], series[j])
			if !ok {
				continue
			}
			total += math.Abs(r)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0, false
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	meanA, meanB := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	cov, varA, varB := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
