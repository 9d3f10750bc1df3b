package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hydra-core/internal/alert"
	"hydra-core/internal/execution"
)

// logNotifier 把告警写入结构化日志。外部通道（邮件、IM）可替换此实现。
type logNotifier struct {
	logger *zap.Logger
}

func newLogNotifier(logger *zap.Logger) *logNotifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, a alert.Alert) error {
	n.logger.Warn("告警",
		zap.String("id", a.ID),
		zap.String("severity", string(a.Severity)),
		zap.String("type", a.Type),
		zap.String("message", a.Message),
		zap.Strings("entities", a.AffectedEntities))
	return nil
}

// remediator 把告警附带的补救动作映射到执行端与核心状态。
type remediator struct {
	trader execution.Trader
	core   *core
	symbol string
}

func (r *remediator) Remediate(ctx context.Context, action string, entities []string) error {
	switch action {
	case alert.ActionReducePositions:
		symbols := entities
		if len(symbols) == 0 {
			symbols = []string{r.symbol}
		}
		return r.trader.ReducePositions(ctx, symbols, 0.5)
	case alert.ActionBlockNewPositions:
		return r.core.SetBlockNewEntries(ctx, true)
	default:
		return fmt.Errorf("未知的补救动作: %s", action)
	}
}

var (
	_ alert.Notifier   = (*logNotifier)(nil)
	_ alert.Remediator = (*remediator)(nil)
)
