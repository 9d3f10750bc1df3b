package execution

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// simPosition 是模拟账本中的一个净头寸。
type simPosition struct {
	quantity float64 // 正为多头，负为空头
	avgPrice float64
}

// Simulator 在内存账本上撮合委托，用于模拟运行与测试。
type Simulator struct {
	mu        sync.Mutex
	positions map[string]*simPosition
	slippage  float64
	logger    *zap.Logger
}

// NewSimulator 创建模拟执行器。
func NewSimulator(slippage float64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		positions: make(map[string]*simPosition),
		slippage:  slippage,
		logger:    logger,
	}
}

// Execute 按委托价加滑点成交并更新账本，平仓部分返回已实现盈亏。
func (s *Simulator) Execute(_ context.Context, order Order) (Fill, error) {
	if order.Amount <= 0 {
		return Fill{}, fmt.Errorf("execution: 委托数量无效: %f", order.Amount)
	}
	if order.Price <= 0 {
		return Fill{}, fmt.Errorf("execution: 委托价格无效: %f", order.Price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filled := order.Price
	signed := order.Amount
	if order.Side == OrderSideBuy {
		filled *= 1 + s.slippage
	} else {
		filled *= 1 - s.slippage
		signed = -order.Amount
	}

	pos, ok := s.positions[order.Symbol]
	if !ok {
		pos = &simPosition{}
		s.positions[order.Symbol] = pos
	}

	realized := 0.0
	if pos.quantity != 0 && sameSign(pos.quantity, signed) {
		// 加仓，摊薄均价。
		total := pos.quantity + signed
		pos.avgPrice = (pos.avgPrice*math.Abs(pos.quantity) + filled*math.Abs(signed)) / math.Abs(total)
		pos.quantity = total
	} else {
		closed := math.Min(math.Abs(pos.quantity), math.Abs(signed))
		if closed > 0 {
			direction := 1.0
			if pos.quantity < 0 {
				direction = -1.0
			}
			realized = (filled - pos.avgPrice) * closed * direction
		}
		pos.quantity += signed
		if pos.quantity == 0 {
			pos.avgPrice = 0
		} else if sameSign(pos.quantity, signed) {
			// 余量方向与本次委托一致，说明是从零或反向开出的
			// 新头寸，按成交价计；部分减仓保留原均价。
			pos.avgPrice = filled
		}
	}

	s.logger.Debug("模拟成交",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("amount", order.Amount),
		zap.Float64("price", filled),
		zap.Float64("realized_pnl", realized),
	)

	return Fill{
		Order:       order,
		FilledPrice: filled,
		RealizedPnL: realized,
		ExecutedAt:  time.Now().UTC(),
	}, nil
}

// ReducePositions 按比例收缩指定标的的模拟头寸。
func (s *Simulator) ReducePositions(_ context.Context, symbols []string, fraction float64) error {
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("execution: 减仓比例非法: %f", fraction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, symbol := range symbols {
		pos, ok := s.positions[symbol]
		if !ok || pos.quantity == 0 {
			continue
		}
		pos.quantity *= 1 - fraction
		if math.Abs(pos.quantity) < 1e-12 {
			pos.quantity = 0
			pos.avgPrice = 0
		}
	}
	return nil
}

// PositionQuantity 返回某标的的净头寸数量。
func (s *Simulator) PositionQuantity(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[symbol]; ok {
		return pos.quantity
	}
	return 0
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
