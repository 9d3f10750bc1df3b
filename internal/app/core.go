package app

import (
	"context"

	"hydra-core/internal/allocator"
	"hydra-core/internal/risk"
)

// coreState 是全部可变治理状态，只被 core 的事件循环读写。
type coreState struct {
	allocation       allocator.Allocation
	limits           []risk.RiskLimit
	blockNewEntries  bool
	decisionsEmitted int
	alertsRaised     int
}

type coreCmd func(*coreState)

// core 是持有治理状态的 actor。其它协程通过消息与它交互，
// 从不共享可变内存；查询返回的均为副本。
type core struct {
	cmds chan coreCmd
}

func newCore(initial allocator.Allocation) *core {
	c := &core{cmds: make(chan coreCmd, 16)}
	// 初始分配在事件循环启动前写入队列，首个命令即生效。
	c.cmds <- func(s *coreState) {
		s.allocation = initial
	}
	return c
}

// Run 驱动事件循环直至上下文取消。
func (c *core) Run(ctx context.Context) error {
	var state coreState
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.cmds:
			cmd(&state)
		}
	}
}

func (c *core) do(ctx context.Context, fn coreCmd) error {
	done := make(chan struct{})
	wrapped := func(s *coreState) {
		fn(s)
		close(done)
	}
	select {
	case c.cmds <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Weights 返回当前分配权重的副本。
func (c *core) Weights(ctx context.Context) (map[string]float64, error) {
	var out map[string]float64
	err := c.do(ctx, func(s *coreState) {
		out = make(map[string]float64, len(s.allocation.Weights))
		for id, w := range s.allocation.Weights {
			out[id] = w
		}
	})
	return out, err
}

// SetAllocation 替换当前资金分配。
func (c *core) SetAllocation(ctx context.Context, a allocator.Allocation) error {
	return c.do(ctx, func(s *coreState) {
		s.allocation = a
	})
}

// Allocation 返回当前资金分配的副本。
func (c *core) Allocation(ctx context.Context) (allocator.Allocation, error) {
	var out allocator.Allocation
	err := c.do(ctx, func(s *coreState) {
		out = allocator.Allocation{
			Weights:      make(map[string]float64, len(s.allocation.Weights)),
			Details:      make(map[string]allocator.StrategyAllocation, len(s.allocation.Details)),
			RebalancedAt: s.allocation.RebalancedAt,
		}
		for id, w := range s.allocation.Weights {
			out.Weights[id] = w
		}
		for id, d := range s.allocation.Details {
			out.Details[id] = d
		}
	})
	return out, err
}

// SetLimits 替换最近一次限额巡检结果。
func (c *core) SetLimits(ctx context.Context, limits []risk.RiskLimit) error {
	return c.do(ctx, func(s *coreState) {
		s.limits = append([]risk.RiskLimit(nil), limits...)
	})
}

// Limits 返回最近一次限额巡检结果的副本。
func (c *core) Limits(ctx context.Context) ([]risk.RiskLimit, error) {
	var out []risk.RiskLimit
	err := c.do(ctx, func(s *coreState) {
		out = append([]risk.RiskLimit(nil), s.limits...)
	})
	return out, err
}

// SetBlockNewEntries 切换新开仓封锁。封锁由补救动作触发，
// 只有下一次限额巡检全部回到正常区间才会解除。
func (c *core) SetBlockNewEntries(ctx context.Context, blocked bool) error {
	return c.do(ctx, func(s *coreState) {
		s.blockNewEntries = blocked
	})
}

// BlockNewEntries 查询新开仓封锁状态。
func (c *core) BlockNewEntries(ctx context.Context) (bool, error) {
	var out bool
	err := c.do(ctx, func(s *coreState) {
		out = s.blockNewEntries
	})
	return out, err
}

// NoteDecision 累计已发出的决策数。
func (c *core) NoteDecision(ctx context.Context) error {
	return c.do(ctx, func(s *coreState) {
		s.decisionsEmitted++
	})
}

// NoteAlert 累计已分发的告警数。
func (c *core) NoteAlert(ctx context.Context) error {
	return c.do(ctx, func(s *coreState) {
		s.alertsRaised++
	})
}

// Stats 返回并复位日报所需的计数。
func (c *core) Stats(ctx context.Context, reset bool) (decisions, alerts int, err error) {
	err = c.do(ctx, func(s *coreState) {
		decisions = s.decisionsEmitted
		alerts = s.alertsRaised
		if reset {
			s.decisionsEmitted = 0
			s.alertsRaised = 0
		}
	})
	return decisions, alerts, err
}
