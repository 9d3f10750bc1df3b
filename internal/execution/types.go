package execution

import (
	"errors"
	"math"
	"time"

	"hydra-core/internal/ensemble"
	"hydra-core/internal/signal"
)

// OrderSide 表示下单方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order 抽象具体委托。
type Order struct {
	Symbol     string
	Side       OrderSide
	Amount     float64
	Price      float64
	ReduceOnly bool
	Params     map[string]interface{}
}

// Fill 为执行结果摘要。
type Fill struct {
	Order       Order
	FilledPrice float64
	RealizedPnL float64
	ExecutedAt  time.Time
}

// Options 控制下单参数。
type Options struct {
	Slippage    float64
	TimeInForce string
}

// BuildOrder 把通过准入的决策换算为委托。HOLD 不产生委托，
// 返回的第二个值为 false。
func BuildOrder(decision ensemble.Decision, symbol string, equity, marketPrice float64) (Order, bool, error) {
	if decision.Action == signal.ActionHold {
		return Order{}, false, nil
	}
	if equity <= 0 {
		return Order{}, false, errors.New("execution: 账户净值无效")
	}
	if marketPrice <= 0 {
		return Order{}, false, errors.New("execution: 市场价格无效")
	}

	notional := decision.ProposedPositionSize * equity
	amount := math.Abs(notional) / marketPrice
	if amount <= 0 {
		return Order{}, false, nil
	}

	side := OrderSideBuy
	if decision.Action == signal.ActionSell {
		side = OrderSideSell
	}

	return Order{
		Symbol: symbol,
		Side:   side,
		Amount: amount,
		Price:  marketPrice,
	}, true, nil
}
