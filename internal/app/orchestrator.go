package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hydra-core/internal/alert"
	"hydra-core/internal/allocator"
	"hydra-core/internal/compliance"
	"hydra-core/internal/config"
	"hydra-core/internal/ensemble"
	"hydra-core/internal/execution"
	"hydra-core/internal/feature"
	"hydra-core/internal/market"
	"hydra-core/internal/metrics"
	"hydra-core/internal/monitor"
	"hydra-core/internal/regime"
	"hydra-core/internal/report"
	"hydra-core/internal/risk"
	"hydra-core/internal/signal"
	"hydra-core/internal/store"
	"hydra-core/internal/stress"
)

type orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger
	core   *core

	collector    *signal.Collector
	detector     *regime.Detector
	consolidator *ensemble.Consolidator
	allocator    *allocator.Allocator
	tracker      *allocator.Tracker
	governor     *risk.Governor
	stress       *stress.Simulator
	scenarios    []stress.Scenario
	compliance   *compliance.Engine
	violations   *compliance.ViolationLog
	dispatcher   *alert.Dispatcher
	trader       execution.Trader
	portfolio    portfolioSource
	simulated    *simPortfolio
	feed         *marketFeed
	monitor      *monitor.Service
	reporter     *report.Reporter

	symbol string
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	marketClient, err := market.NewClient(cfg.Market, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
	}
	marketSvc := market.NewService(marketClient, logger)
	extractor := feature.NewExtractor(logger)
	feed := newMarketFeed(marketSvc, extractor, cfg.Scheduler.DecisionInterval)

	providers, err := buildProviders(cfg.Strategies, feed, logger)
	if err != nil {
		return nil, err
	}
	collector := signal.NewCollector(providers, cfg.Consensus.SignalTimeout, logger)

	limit := risk.LimitFromConfig(cfg.Risk)
	governor := risk.NewGovernor(limit)

	consolidator := ensemble.NewConsolidator(ensemble.Config{
		ConsensusThreshold: cfg.Consensus.Threshold,
		MinAgreement:       cfg.Consensus.MinAgreement,
		MaxPositionSize:    limit.MaxPositionSize,
	})

	strategies := make([]allocator.Strategy, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		strategies = append(strategies, allocator.Strategy{
			ID:            s.ID,
			Enabled:       s.Enabled,
			RegimeFitness: s.RegimeFitness,
		})
	}
	alloc := allocator.New(allocator.Config{
		WinRateWeight:  cfg.Allocator.WinRateWeight,
		SharpeWeight:   cfg.Allocator.SharpeWeight,
		DrawdownWeight: cfg.Allocator.DrawdownWeight,
	}, strategies)

	scenarios := make([]stress.Scenario, 0, len(cfg.Stress.Scenarios))
	for _, sc := range cfg.Stress.Scenarios {
		scenarios = append(scenarios, stress.Scenario{
			Name:                 sc.Name,
			MarketShock:          sc.MarketShock,
			VolatilityMultiplier: sc.VolatilityMultiplier,
			CorrelationIncrease:  sc.CorrelationIncrease,
			LiquidityReduction:   sc.LiquidityReduction,
			TimeHorizon:          sc.TimeHorizon,
			Seed:                 sc.Seed,
		})
	}

	rules := make([]compliance.Rule, 0, len(cfg.Compliance.Rules))
	for _, r := range cfg.Compliance.Rules {
		rules = append(rules, compliance.RuleFromConfig(r))
	}
	complianceEngine := compliance.NewEngine(rules, logger)

	violationLog, err := compliance.NewViolationLog(store.DB())
	if err != nil {
		return nil, fmt.Errorf("初始化合规日志失败: %w", err)
	}

	monitorSvc, err := monitor.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	symbol := cfg.Execution.Symbol
	if symbol == "" {
		symbol = cfg.Market.Symbol
	}

	execOpts := execution.Options{
		Slippage:    cfg.Execution.Slippage,
		TimeInForce: cfg.Execution.TimeInForce,
	}

	o := &orchestrator{
		cfg:          cfg,
		logger:       logger,
		detector:     regime.NewDetector(logger),
		collector:    collector,
		consolidator: consolidator,
		allocator:    alloc,
		tracker:      allocator.NewTracker(),
		governor:     governor,
		stress:       stress.NewSimulator(cfg.Stress.TopN),
		scenarios:    scenarios,
		compliance:   complianceEngine,
		violations:   violationLog,
		feed:         feed,
		monitor:      monitorSvc,
		reporter:     report.NewReporter(cfg.Report, logger),
		symbol:       symbol,
	}

	if cfg.Execution.Simulation {
		logger.Info("执行器处于模拟模式", zap.String("symbol", symbol))
		sim := execution.NewSimulator(cfg.Execution.Slippage, logger)
		o.trader = sim
		o.simulated = newSimPortfolio(sim, feed, symbol, cfg.Execution.InitialEquity)
		o.portfolio = o.simulated
	} else {
		o.trader = execution.NewExecutor(marketClient.Exchange(), execOpts, logger)
		o.portfolio = newLivePortfolio(marketClient.Exchange(), feed)
	}

	equalWeights := alloc.Rebalance(map[string]allocator.PerformanceSnapshot{}, regime.Regime{Type: regime.Sideways})
	o.core = newCore(equalWeights)

	o.dispatcher = alert.NewDispatcher(
		newLogNotifier(logger),
		&remediator{trader: o.trader, core: o.core, symbol: symbol},
		cfg.Alert.Retention,
		logger,
	)

	return o, nil
}

func buildProviders(strategies []config.StrategyConfig, feed *marketFeed, logger *zap.Logger) ([]signal.Provider, error) {
	providers := make([]signal.Provider, 0, len(strategies))
	for _, s := range strategies {
		if !s.Enabled {
			continue
		}
		switch strings.ToLower(s.Kind) {
		case "trend":
			providers = append(providers, signal.NewTrendProvider(s.ID, feed))
		case "meanrev":
			providers = append(providers, signal.NewMeanReversionProvider(s.ID, feed))
		case "external":
			logger.Info("外部策略引擎需在启动后注册", zap.String("strategy", s.ID))
		default:
			return nil, fmt.Errorf("未知的策略类型: %s (%s)", s.Kind, s.ID)
		}
	}
	return providers, nil
}

// decisionCycle 执行一轮 采集→检测→合并→准入→执行。
func (o *orchestrator) decisionCycle(ctx context.Context) {
	metrics.DecisionCycles.Inc()

	currentRegime := o.detectRegime(ctx)
	signals := o.collector.Collect(ctx)
	o.monitor.RecordSignals(ctx, signals, currentRegime)
	if len(signals) == 0 {
		return
	}

	weights, err := o.core.Weights(ctx)
	if err != nil {
		return
	}

	decision, ok := o.consolidator.Consolidate(signals, weights, currentRegime)
	if !ok {
		o.logger.Debug("本周期未达成共识")
		return
	}
	metrics.DecisionsEmitted.Inc()
	_ = o.core.NoteDecision(ctx)
	o.monitor.RecordDecision(ctx, decision)

	verdict := o.admit(ctx, decision)
	metrics.AdmissionVerdicts.WithLabelValues(string(verdict)).Inc()
	o.monitor.RecordAdmission(ctx, verdict, decision)

	switch verdict {
	case risk.VerdictAllow, risk.VerdictWarn:
		o.execute(ctx, decision)
	case risk.VerdictBlock:
		o.logger.Info("决策被风控阻断",
			zap.String("action", string(decision.Action)),
			zap.Float64("size", decision.ProposedPositionSize))
	case risk.VerdictLiquidate:
		o.liquidate(ctx, "准入判定要求减仓")
	}
}

func (o *orchestrator) detectRegime(ctx context.Context) regime.Regime {
	vector, err := o.feed.Features(ctx)
	if err != nil {
		o.logger.Warn("特征提取失败，沿用上一市况", zap.Error(err))
		return o.detector.Current()
	}
	return o.detector.Detect(vector)
}

// admit 复用监控周期写入的限额快照，临界情况无需等待自身巡检。
func (o *orchestrator) admit(ctx context.Context, decision ensemble.Decision) risk.Verdict {
	if blocked, err := o.core.BlockNewEntries(ctx); err == nil && blocked {
		return risk.VerdictBlock
	}

	limits, err := o.core.Limits(ctx)
	if err != nil {
		return risk.VerdictBlock
	}
	if len(limits) == 0 {
		// 启动初期尚无巡检快照，就地评估一次。
		positions, equity, peak, snapErr := o.portfolio.Snapshot(ctx)
		if snapErr != nil {
			o.logger.Warn("组合快照失败，决策保守拒绝", zap.Error(snapErr))
			return risk.VerdictBlock
		}
		limits = o.governor.Evaluate(risk.Measure(positions, equity, peak))
	}
	return o.governor.Admit(decision.ProposedPositionSize, limits)
}

func (o *orchestrator) execute(ctx context.Context, decision ensemble.Decision) {
	price, err := o.feed.LastPrice(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "获取市场价格失败", err, nil)
		return
	}

	equity := o.cfg.Execution.InitialEquity
	if o.simulated != nil {
		equity = o.simulated.Equity()
	} else {
		_, liveEquity, _, snapErr := o.portfolio.Snapshot(ctx)
		if snapErr != nil {
			o.monitor.RecordError(ctx, "获取账户净值失败", snapErr, nil)
			return
		}
		equity = liveEquity
	}

	order, ok, err := execution.BuildOrder(decision, o.symbol, equity, price)
	if err != nil {
		o.monitor.RecordError(ctx, "构建委托失败", err, nil)
		return
	}
	if !ok {
		return
	}

	fill, err := o.trader.Execute(ctx, order)
	if err != nil {
		o.monitor.RecordError(ctx, "执行委托失败", err, map[string]interface{}{"symbol": order.Symbol})
		return
	}
	o.monitor.RecordExecution(ctx, fill)

	if o.simulated != nil {
		o.simulated.ApplyFill(fill)
	}
	if fill.RealizedPnL != 0 && equity > 0 {
		// 已实现收益按贡献策略的权重拆分计入绩效。
		o.recordPerformance(ctx, decision, fill.RealizedPnL/equity)
	}
}

func (o *orchestrator) recordPerformance(ctx context.Context, decision ensemble.Decision, ret float64) {
	weights, err := o.core.Weights(ctx)
	if err != nil {
		return
	}
	total := 0.0
	for _, id := range decision.ContributingStrategies {
		total += weights[id]
	}
	if total <= 0 {
		return
	}
	for _, id := range decision.ContributingStrategies {
		o.tracker.Record(id, ret*weights[id]/total)
	}
}

func (o *orchestrator) liquidate(ctx context.Context, reason string) {
	a := o.dispatcher.Dispatch(ctx, alert.Event{
		Severity:           alert.SeverityCritical,
		Type:               "risk_liquidation",
		Message:            reason,
		AffectedEntities:   []string{o.symbol},
		RecommendedActions: []string{alert.ActionReducePositions, alert.ActionBlockNewPositions},
	})
	_ = o.core.NoteAlert(ctx)
	o.monitor.RecordAlert(ctx, a)
}

// monitoringCycle 执行一轮 度量→限额巡检→合规→告警。
func (o *orchestrator) monitoringCycle(ctx context.Context) {
	positions, equity, peak, err := o.portfolio.Snapshot(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "组合快照失败", err, nil)
		return
	}

	snap := risk.Measure(positions, equity, peak)
	metrics.PortfolioLeverage.Set(snap.Leverage)
	metrics.PortfolioVaR95.Set(snap.VaR95)

	limits := o.governor.Evaluate(snap)
	_ = o.core.SetLimits(ctx, limits)
	o.monitor.RecordRisk(ctx, snap, limits)

	allClear := true
	for _, l := range limits {
		if l.Breached {
			allClear = false
			metrics.LimitBreaches.WithLabelValues(l.Type).Inc()
		}
		switch l.Action {
		case risk.ActionWarn:
			o.raiseAlert(ctx, alert.SeverityWarning, "limit_warning", l.Reason, nil)
		case risk.ActionBlock:
			o.raiseAlert(ctx, alert.SeverityCritical, "limit_breach", l.Reason, []string{alert.ActionBlockNewPositions})
		case risk.ActionLiquidate:
			o.liquidate(ctx, l.Reason)
		}
	}
	if allClear {
		// 巡检全面回到正常区间后解除开仓封锁。
		if blocked, blockErr := o.core.BlockNewEntries(ctx); blockErr == nil && blocked {
			o.logger.Info("限额恢复正常，解除开仓封锁")
			_ = o.core.SetBlockNewEntries(ctx, false)
		}
	}

	violations := o.compliance.Check(positions, snap)
	if len(violations) > 0 {
		o.monitor.RecordCompliance(ctx, violations)
	}
	o.handleViolations(ctx, violations)
}

// handleViolations 持久化违规并按规则处置。阻断处置不依赖
// 告警级别，规则声明 block 即封锁新开仓。
func (o *orchestrator) handleViolations(ctx context.Context, violations []compliance.Violation) {
	for i := range violations {
		v := &violations[i]
		metrics.ComplianceViolations.Inc()
		if recordErr := o.violations.Record(ctx, v); recordErr != nil {
			o.logger.Warn("持久化违规记录失败", zap.Error(recordErr))
		}

		severity := alert.SeverityWarning
		var actions []string
		if rule, ok := o.compliance.RuleByID(v.RuleID); ok {
			if strings.EqualFold(rule.Severity, "critical") {
				severity = alert.SeverityCritical
			}
			if rule.ViolationAction == compliance.ActionBlock {
				actions = []string{alert.ActionBlockNewPositions}
				if blockErr := o.core.SetBlockNewEntries(ctx, true); blockErr != nil {
					o.logger.Warn("设置开仓封锁失败",
						zap.String("rule_id", v.RuleID),
						zap.Error(blockErr))
				} else {
					o.logger.Info("合规规则触发开仓封锁",
						zap.String("rule_id", v.RuleID))
				}
			}
		}
		o.raiseAlert(ctx, severity, "compliance_violation",
			fmt.Sprintf("规则 %s 违规: 当前 %.4f 超出允许 %.4f", v.RuleID, v.CurrentValue, v.AllowedValue),
			actions)
	}
}

func (o *orchestrator) raiseAlert(ctx context.Context, severity alert.Severity, alertType, message string, actions []string) {
	a := o.dispatcher.Dispatch(ctx, alert.Event{
		Severity:           severity,
		Type:               alertType,
		Message:            message,
		AffectedEntities:   []string{o.symbol},
		RecommendedActions: actions,
	})
	_ = o.core.NoteAlert(ctx)
	o.monitor.RecordAlert(ctx, a)
}

// rebalanceCycle 根据最新绩效与市况重新分配资金权重。
func (o *orchestrator) rebalanceCycle(ctx context.Context) {
	perf := make(map[string]allocator.PerformanceSnapshot, len(o.cfg.Strategies))
	for _, s := range o.cfg.Strategies {
		if s.Enabled {
			perf[s.ID] = o.tracker.Snapshot(s.ID)
		}
	}

	currentRegime := o.detector.Current()
	allocation := o.allocator.Rebalance(perf, currentRegime)
	if !allocator.ValidateSum(allocation.Weights) && len(allocation.Weights) > 0 {
		hasActive := false
		for _, w := range allocation.Weights {
			if w > 0 {
				hasActive = true
				break
			}
		}
		if hasActive {
			o.logger.Error("再平衡权重未落在单纯形上，保留旧分配")
			return
		}
	}

	if err := o.core.SetAllocation(ctx, allocation); err != nil {
		return
	}
	o.monitor.RecordRebalance(ctx, allocation, currentRegime)
	o.logger.Info("资金再平衡完成",
		zap.String("regime", string(currentRegime.Type)),
		zap.Any("weights", allocation.Weights))
}

// stressCycle 对当前组合跑全部压力情景。
func (o *orchestrator) stressCycle(ctx context.Context) {
	positions, equity, _, err := o.portfolio.Snapshot(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "压力测试取数失败", err, nil)
		return
	}
	if len(positions) == 0 {
		return
	}

	limit := o.governor.Limit()
	for _, scenario := range o.scenarios {
		result := o.stress.Run(positions, scenario)
		o.monitor.RecordStressTest(ctx, result)

		if equity > 0 && result.TotalLoss > equity*limit.MaxDrawdown {
			o.raiseAlert(ctx, alert.SeverityWarning, "stress_test",
				fmt.Sprintf("情景 %s 预估损失 %.2f 超出最大回撤预算", scenario.Name, result.TotalLoss),
				nil)
		}
	}
}

// reportCycle 生成治理日报。
func (o *orchestrator) reportCycle(ctx context.Context) {
	allocation, err := o.core.Allocation(ctx)
	if err != nil {
		return
	}
	decisions, alerts, err := o.core.Stats(ctx, true)
	if err != nil {
		return
	}

	perf := make(map[string]allocator.PerformanceSnapshot, len(o.cfg.Strategies))
	for _, s := range o.cfg.Strategies {
		if s.Enabled {
			perf[s.ID] = o.tracker.Snapshot(s.ID)
		}
	}

	var portfolioRisk risk.PortfolioSnapshot
	if positions, equity, peak, snapErr := o.portfolio.Snapshot(ctx); snapErr == nil {
		portfolioRisk = risk.Measure(positions, equity, peak)
	}

	summary := o.reporter.Generate(ctx, report.Summary{
		Regime:           o.detector.Current(),
		Allocation:       allocation,
		Performance:      perf,
		PortfolioRisk:    portfolioRisk,
		DecisionsEmitted: decisions,
		AlertsRaised:     alerts,
	})
	o.logger.Info("治理日报\n" + report.Render(summary))
}
