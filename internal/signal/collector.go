package signal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Provider 是策略引擎向治理核心暴露的唯一能力接口。
// 核心只遍历注册列表，从不根据引擎身份做分支。
type Provider interface {
	StrategyID() string
	GetSignal(ctx context.Context) (StrategySignal, error)
}

// Collector 在每个决策周期内并发拉取各策略信号。
// 单个策略超时或出错只会使其缺席本周期，不会中断整个周期。
type Collector struct {
	providers []Provider
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCollector 创建信号收集器。
func NewCollector(providers []Provider, timeout time.Duration, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Collector{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Register 追加一个策略引擎。仅允许在开始采集之前调用。
func (c *Collector) Register(p Provider) {
	c.providers = append(c.providers, p)
}

// Collect 返回本周期内按到达顺序排列的有效信号。
func (c *Collector) Collect(ctx context.Context) []StrategySignal {
	type arrival struct {
		sig StrategySignal
		at  time.Time
	}

	results := make(chan arrival, len(c.providers))
	var wg sync.WaitGroup

	for _, p := range c.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			sig, err := p.GetSignal(callCtx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					c.logger.Warn("策略信号超时，本周期跳过",
						zap.String("strategy", p.StrategyID()),
						zap.Duration("timeout", c.timeout),
					)
				} else {
					c.logger.Warn("拉取策略信号失败，本周期跳过",
						zap.String("strategy", p.StrategyID()),
						zap.Error(err),
					)
				}
				return
			}

			if sig.StrategyID == "" {
				sig.StrategyID = p.StrategyID()
			}
			if validateErr := sig.Validate(); validateErr != nil {
				c.logger.Warn("策略信号非法，本周期跳过",
					zap.String("strategy", p.StrategyID()),
					zap.Error(validateErr),
				)
				return
			}

			results <- arrival{sig: sig, at: time.Now().UTC()}
		}(p)
	}

	wg.Wait()
	close(results)

	arrivals := make([]arrival, 0, len(c.providers))
	for r := range results {
		arrivals = append(arrivals, r)
	}
	// 按到达时刻排序，保证下游平手处理的输入顺序确定。
	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].at.Before(arrivals[j].at)
	})

	signals := make([]StrategySignal, 0, len(arrivals))
	for _, r := range arrivals {
		signals = append(signals, r.sig)
	}
	return signals
}
