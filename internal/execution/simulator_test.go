package execution

import (
	"context"
	"math"
	"testing"

	"hydra-core/internal/ensemble"
	"hydra-core/internal/signal"
)

func TestBuildOrder(t *testing.T) {
	decision := ensemble.Decision{Action: signal.ActionBuy, ProposedPositionSize: 0.1}

	order, ok, err := BuildOrder(decision, "BTC/USDT:USDT", 100000, 50000)
	if err != nil || !ok {
		t.Fatalf("expected an order, ok=%v err=%v", ok, err)
	}
	if order.Side != OrderSideBuy {
		t.Fatalf("expected buy, got %s", order.Side)
	}
	// 0.1 × 100000 / 50000 = 0.2 张。
	if math.Abs(order.Amount-0.2) > 1e-9 {
		t.Fatalf("expected amount 0.2, got %f", order.Amount)
	}
}

func TestBuildOrder_HoldProducesNothing(t *testing.T) {
	decision := ensemble.Decision{Action: signal.ActionHold, ProposedPositionSize: 0.1}
	if _, ok, err := BuildOrder(decision, "BTC/USDT:USDT", 100000, 50000); ok || err != nil {
		t.Fatalf("hold must not produce an order, ok=%v err=%v", ok, err)
	}
}

func TestBuildOrder_InvalidInputs(t *testing.T) {
	decision := ensemble.Decision{Action: signal.ActionBuy, ProposedPositionSize: 0.1}
	if _, _, err := BuildOrder(decision, "BTC/USDT:USDT", 0, 50000); err == nil {
		t.Fatal("zero equity must fail")
	}
	if _, _, err := BuildOrder(decision, "BTC/USDT:USDT", 100000, 0); err == nil {
		t.Fatal("zero price must fail")
	}
}

func TestSimulator_RoundTripPnL(t *testing.T) {
	s := NewSimulator(0, nil)
	ctx := context.Background()

	if _, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideBuy, Amount: 1, Price: 50000}); err != nil {
		t.Fatalf("open: %v", err)
	}
	fill, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideSell, Amount: 1, Price: 51000})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if math.Abs(fill.RealizedPnL-1000) > 1e-6 {
		t.Fatalf("expected 1000 realized pnl, got %f", fill.RealizedPnL)
	}
	if q := s.PositionQuantity("BTC/USDT:USDT"); q != 0 {
		t.Fatalf("position must be flat, got %f", q)
	}
}

func TestSimulator_PartialCloseKeepsEntryPrice(t *testing.T) {
	s := NewSimulator(0, nil)
	ctx := context.Background()

	if _, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideBuy, Amount: 2, Price: 100}); err != nil {
		t.Fatalf("open: %v", err)
	}

	first, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideSell, Amount: 1, Price: 110})
	if err != nil {
		t.Fatalf("partial close: %v", err)
	}
	if math.Abs(first.RealizedPnL-10) > 1e-9 {
		t.Fatalf("expected 10 realized pnl on first half, got %f", first.RealizedPnL)
	}

	// 余量的均价必须仍是开仓价，第二次平仓实现同样的盈亏。
	second, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideSell, Amount: 1, Price: 110})
	if err != nil {
		t.Fatalf("final close: %v", err)
	}
	if math.Abs(second.RealizedPnL-10) > 1e-9 {
		t.Fatalf("expected 10 realized pnl on second half, got %f", second.RealizedPnL)
	}
	if q := s.PositionQuantity("BTC/USDT:USDT"); q != 0 {
		t.Fatalf("position must be flat, got %f", q)
	}
}

func TestSimulator_FlipRebasesAveragePrice(t *testing.T) {
	s := NewSimulator(0, nil)
	ctx := context.Background()

	if _, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideBuy, Amount: 1, Price: 100}); err != nil {
		t.Fatalf("open: %v", err)
	}

	flip, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideSell, Amount: 3, Price: 110})
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if math.Abs(flip.RealizedPnL-10) > 1e-9 {
		t.Fatalf("expected 10 realized pnl on the closed leg, got %f", flip.RealizedPnL)
	}
	if q := s.PositionQuantity("BTC/USDT:USDT"); math.Abs(q+2) > 1e-9 {
		t.Fatalf("expected short 2 after flip, got %f", q)
	}

	// 新空头的均价是翻转时的成交价，原价平仓不应产生盈亏。
	closeFill, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideBuy, Amount: 2, Price: 110})
	if err != nil {
		t.Fatalf("close short: %v", err)
	}
	if math.Abs(closeFill.RealizedPnL) > 1e-9 {
		t.Fatalf("closing at the flip price must realize zero, got %f", closeFill.RealizedPnL)
	}
}

func TestSimulator_SlippageWorsensFill(t *testing.T) {
	s := NewSimulator(0.001, nil)
	ctx := context.Background()

	fill, err := s.Execute(ctx, Order{Symbol: "ETH/USDT:USDT", Side: OrderSideBuy, Amount: 1, Price: 3000})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fill.FilledPrice <= 3000 {
		t.Fatalf("buy slippage must raise the fill price, got %f", fill.FilledPrice)
	}
}

func TestSimulator_ReducePositions(t *testing.T) {
	s := NewSimulator(0, nil)
	ctx := context.Background()

	if _, err := s.Execute(ctx, Order{Symbol: "BTC/USDT:USDT", Side: OrderSideBuy, Amount: 2, Price: 50000}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.ReducePositions(ctx, []string{"BTC/USDT:USDT"}, 0.5); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if q := s.PositionQuantity("BTC/USDT:USDT"); math.Abs(q-1) > 1e-9 {
		t.Fatalf("expected half the position, got %f", q)
	}

	if err := s.ReducePositions(ctx, []string{"BTC/USDT:USDT"}, 1.5); err == nil {
		t.Fatal("fraction above 1 must fail")
	}
}
