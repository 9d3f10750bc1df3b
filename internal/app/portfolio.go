package app

import (
	"context"
	"fmt"
	"sync"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"hydra-core/internal/execution"
	"hydra-core/internal/risk"
)

// portfolioSource 抽象组合视图：持仓敞口、当前净值与历史峰值。
type portfolioSource interface {
	Snapshot(ctx context.Context) (positions []risk.Position, equity, peakEquity float64, err error)
}

// simPortfolio 以模拟执行器的账本为基础维护净值曲线。
type simPortfolio struct {
	sim    *execution.Simulator
	feed   *marketFeed
	symbol string

	mu     sync.Mutex
	equity float64
	peak   float64
}

func newSimPortfolio(sim *execution.Simulator, feed *marketFeed, symbol string, initialEquity float64) *simPortfolio {
	return &simPortfolio{
		sim:    sim,
		feed:   feed,
		symbol: symbol,
		equity: initialEquity,
		peak:   initialEquity,
	}
}

// ApplyFill 把已实现盈亏计入净值。
func (p *simPortfolio) ApplyFill(fill execution.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.equity += fill.RealizedPnL
	if p.equity > p.peak {
		p.peak = p.equity
	}
}

// Equity 返回当前净值。
func (p *simPortfolio) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity
}

func (p *simPortfolio) Snapshot(ctx context.Context) ([]risk.Position, float64, float64, error) {
	p.mu.Lock()
	equity := p.equity
	peak := p.peak
	p.mu.Unlock()

	quantity := p.sim.PositionQuantity(p.symbol)
	if quantity == 0 {
		return nil, equity, peak, nil
	}

	price, err := p.feed.LastPrice(ctx)
	if err != nil {
		return nil, equity, peak, err
	}
	returns, err := p.feed.Returns(ctx)
	if err != nil {
		return nil, equity, peak, err
	}

	positions := []risk.Position{{
		Symbol:   p.symbol,
		Quantity: quantity,
		Value:    quantity * price,
		Returns:  returns,
	}}
	return positions, equity, peak, nil
}

type balanceClient interface {
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
}

// livePortfolio 从交易所读取账户净值与持仓。
type livePortfolio struct {
	client balanceClient
	feed   *marketFeed

	mu   sync.Mutex
	peak float64
}

func newLivePortfolio(client balanceClient, feed *marketFeed) *livePortfolio {
	return &livePortfolio{client: client, feed: feed}
}

func (p *livePortfolio) Snapshot(ctx context.Context) ([]risk.Position, float64, float64, error) {
	balances, err := p.client.FetchBalance()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("app: 获取账户余额失败: %w", err)
	}

	equity := 0.0
	for _, code := range []string{"USDT", "USDC", "USD"} {
		if total, ok := balances.Total[code]; ok && total != nil && *total > 0 {
			equity = *total
			break
		}
	}

	p.mu.Lock()
	if equity > p.peak {
		p.peak = equity
	}
	peak := p.peak
	p.mu.Unlock()

	rawPositions, err := p.client.FetchPositions()
	if err != nil {
		return nil, equity, peak, fmt.Errorf("app: 获取持仓失败: %w", err)
	}

	returns, err := p.feed.Returns(ctx)
	if err != nil {
		returns = nil
	}

	positions := make([]risk.Position, 0, len(rawPositions))
	for _, raw := range rawPositions {
		if raw.Symbol == nil || raw.Contracts == nil || *raw.Contracts == 0 {
			continue
		}
		value := 0.0
		if raw.Notional != nil {
			value = *raw.Notional
		}
		quantity := *raw.Contracts
		if raw.Side != nil && *raw.Side == "short" {
			quantity = -quantity
			value = -value
		}
		positions = append(positions, risk.Position{
			Symbol:   *raw.Symbol,
			Quantity: quantity,
			Value:    value,
			Returns:  returns,
		})
	}
	return positions, equity, peak, nil
}
