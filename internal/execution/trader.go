package execution

import "context"

// Trader 抽象执行器接口，方便切换真实或模拟下单。
// ReducePositions 是风险减仓通道，按比例收缩指定标的敞口。
type Trader interface {
	Execute(ctx context.Context, order Order) (Fill, error)
	ReducePositions(ctx context.Context, symbols []string, fraction float64) error
}

var (
	_ Trader = (*Executor)(nil)
	_ Trader = (*Simulator)(nil)
)
