package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hydra-core/internal/market"
)

type orderClient interface {
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
}

// Executor 把委托提交到真实交易所。
type Executor struct {
	client   orderClient
	logger   *zap.Logger
	maxRetry int
	opts     Options
}

// NewExecutor 创建真实执行器。
func NewExecutor(client orderClient, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:   client,
		logger:   logger,
		maxRetry: 3,
		opts:     opts,
	}
}

// Execute 提交市价委托，遇到瞬时故障时退避重试。
func (e *Executor) Execute(ctx context.Context, order Order) (Fill, error) {
	params := map[string]interface{}{}
	for k, v := range order.Params {
		params[k] = v
	}
	if order.ReduceOnly {
		params["reduceOnly"] = true
	}
	if e.opts.Slippage > 0 {
		params["slippage"] = fmt.Sprintf("%.6f", e.opts.Slippage)
	}
	if e.opts.TimeInForce != "" {
		params["timeInForce"] = strings.ToLower(e.opts.TimeInForce)
	}

	var placed ccxt.Order
	var err error
	for attempt := 1; attempt <= e.maxRetry; attempt++ {
		var opts []ccxt.CreateMarketOrderOptions
		if len(params) > 0 {
			opts = append(opts, ccxt.WithCreateMarketOrderParams(params))
		}
		placed, err = e.client.CreateMarketOrder(order.Symbol, string(order.Side), order.Amount, opts...)
		if err == nil {
			break
		}
		if !market.IsRetryable(err) {
			return Fill{}, err
		}

		wait := time.Duration(attempt) * time.Second
		e.logger.Warn("下单失败，准备重试",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return Fill{}, fmt.Errorf("execution: 重试后仍下单失败: %w", err)
	}

	fill := Fill{Order: order, FilledPrice: order.Price, ExecutedAt: time.Now().UTC()}
	if placed.Average != nil && *placed.Average > 0 {
		fill.FilledPrice = *placed.Average
	}
	return fill, nil
}

// ReducePositions 按比例减仓指定标的，每个标的独立提交 reduce-only 市价单。
func (e *Executor) ReducePositions(ctx context.Context, symbols []string, fraction float64) error {
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("execution: 减仓比例非法: %f", fraction)
	}

	positions, err := e.client.FetchPositions(ccxt.WithFetchPositionsSymbols(symbols))
	if err != nil {
		return fmt.Errorf("execution: 查询持仓失败: %w", err)
	}

	var combined error
	for _, p := range positions {
		if p.Symbol == nil || p.Contracts == nil || *p.Contracts == 0 {
			continue
		}
		amount := *p.Contracts * fraction
		side := OrderSideSell
		if p.Side != nil && *p.Side == "short" {
			side = OrderSideBuy
		}

		if _, err := e.Execute(ctx, Order{
			Symbol:     *p.Symbol,
			Side:       side,
			Amount:     amount,
			ReduceOnly: true,
		}); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("减仓 %s 失败: %w", *p.Symbol, err))
		}
	}
	return combined
}
