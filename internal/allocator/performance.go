package allocator

import (
	"math"
	"sync"
	"time"
)

// PerformanceSnapshot 是一个策略在滚动窗口内的绩效汇总。
type PerformanceSnapshot struct {
	StrategyID  string    `json:"strategy_id"`
	WinRate     float64   `json:"win_rate"`
	Sharpe      float64   `json:"sharpe"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TotalTrades int       `json:"total_trades"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	// 年化夏普按日收益推算。
	annualFactor = 365.0
	// 滚动窗口内最多保留的成交记录数。
	maxTradeHistory = 1000
)

// Tracker 按策略累积已实现盈亏并计算绩效快照。
type Tracker struct {
	mu     sync.Mutex
	trades map[string][]float64
}

// NewTracker 创建绩效跟踪器。
func NewTracker() *Tracker {
	return &Tracker{trades: make(map[string][]float64)}
}

// Record 记录一笔已实现收益率（相对值，非金额）。
func (t *Tracker) Record(strategyID string, ret float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := append(t.trades[strategyID], ret)
	if len(history) > maxTradeHistory {
		history = history[len(history)-maxTradeHistory:]
	}
	t.trades[strategyID] = history
}

// Snapshot 计算单个策略的绩效快照。没有成交时返回零值快照。
func (t *Tracker) Snapshot(strategyID string) PerformanceSnapshot {
	t.mu.Lock()
	history := append([]float64(nil), t.trades[strategyID]...)
	t.mu.Unlock()

	snap := PerformanceSnapshot{
		StrategyID:  strategyID,
		TotalTrades: len(history),
		UpdatedAt:   time.Now().UTC(),
	}
	if len(history) == 0 {
		return snap
	}

	wins := 0
	for _, r := range history {
		if r > 0 {
			wins++
		}
	}
	snap.WinRate = float64(wins) / float64(len(history))
	snap.Sharpe = sharpeRatio(history)
	snap.MaxDrawdown = maxDrawdown(history)
	return snap
}

// sharpeRatio 以样本标准差年化，收益恒定时返回 0。
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
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
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(annualFactor)
}

// maxDrawdown 在复利权益曲线上求最大回撤，结果为正数。
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
