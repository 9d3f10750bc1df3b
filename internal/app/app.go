package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hydra-core/internal/config"
	"hydra-core/internal/signal"
	"hydra-core/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	orch   *orchestrator
}

// New 创建 App 实例并完成全部组件装配。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) (*App, error) {
	orch, err := newOrchestrator(cfg, logger, store)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		orch:   orch,
	}, nil
}

// RegisterProvider 注册配置中声明为 external 的策略引擎。
// 必须在 Run 之前调用。
func (a *App) RegisterProvider(p signal.Provider) {
	a.orch.collector.Register(p)
}

// Run 启动核心状态机、监控接口与各周期循环，阻塞到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("治理核心已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("market", a.cfg.Market.Name),
		zap.String("symbol", a.cfg.Market.Symbol),
		zap.Strings("strategies", a.cfg.ActiveStrategyIDs()),
	)

	if err := startMonitorServer(ctx, a.orch.monitor, a.orch.dispatcher, a.cfg.Scheduler.MonitorPort, a.logger); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.orch.core.Run(gctx)
	})

	g.Go(func() error {
		return a.runLoop(gctx, "decision", a.cfg.Scheduler.DecisionInterval, a.orch.decisionCycle)
	})
	g.Go(func() error {
		return a.runLoop(gctx, "monitoring", a.cfg.Scheduler.MonitorInterval, a.orch.monitoringCycle)
	})
	g.Go(func() error {
		return a.runLoop(gctx, "rebalance", a.cfg.Scheduler.RebalanceInterval, a.orch.rebalanceCycle)
	})
	g.Go(func() error {
		return a.runLoop(gctx, "stress", a.cfg.Scheduler.StressInterval, a.orch.stressCycle)
	})
	g.Go(func() error {
		return a.runLoop(gctx, "report", 24*time.Hour, a.orch.reportCycle)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

// runLoop 按固定周期驱动一个循环，单轮故障只记录不中断。
func (a *App) runLoop(ctx context.Context, name string, interval time.Duration, cycle func(context.Context)) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("循环停止", zap.String("loop", name))
			return ctx.Err()
		case <-ticker.C:
			cycle(ctx)
		}
	}
}
