package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hydra-core/internal/metrics"
)

// Severity 是告警级别。
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// 预定义的补救动作。
const (
	ActionReducePositions   = "reduce_positions_50"
	ActionBlockNewPositions = "block_new_positions"
)

// Event 是触发告警的事件。
type Event struct {
	Severity           Severity
	Type               string
	Message            string
	AffectedEntities   []string
	RecommendedActions []string
}

// Alert 是一条已登记的告警，日志按保留上限截断。
type Alert struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Severity           Severity  `json:"severity"`
	Type               string    `json:"type"`
	Message            string    `json:"message"`
	AffectedEntities   []string  `json:"affected_entities"`
	RecommendedActions []string  `json:"recommended_actions"`
	AutoExecuted       bool      `json:"auto_executed"`
}

// Notifier 把告警推送到外部通道。
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Remediator 执行告警附带的补救动作。
type Remediator interface {
	Remediate(ctx context.Context, action string, entities []string) error
}

// Dispatcher 登记告警、推送通知并在临界告警时执行补救。
type Dispatcher struct {
	mu        sync.Mutex
	log       []Alert
	retention int
	seq       uint64

	notifier   Notifier
	remediator Remediator
	logger     *zap.Logger
}

// NewDispatcher 创建告警分发器。retention 非正时取 200。
// notifier 与 remediator 均可为空，对应能力被禁用。
func NewDispatcher(notifier Notifier, remediator Remediator, retention int, logger *zap.Logger) *Dispatcher {
	if retention <= 0 {
		retention = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		retention:  retention,
		notifier:   notifier,
		remediator: remediator,
		logger:     logger,
	}
}

// Dispatch 由事件生成告警。通知失败重试一次，再失败则丢弃并计数；
// 仅当告警为临界且携带补救动作时执行补救，每条告警恰好执行一次，
// 补救失败会产生一条新的告警而不是被吞掉。
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) Alert {
	alert := d.register(event)

	d.notify(ctx, alert)

	if event.Severity == SeverityCritical && len(event.RecommendedActions) > 0 && d.remediator != nil {
		if err := d.remediate(ctx, alert); err != nil {
			d.logger.Error("补救执行失败",
				zap.String("alert_id", alert.ID),
				zap.Error(err))
			failure := d.register(Event{
				Severity:         SeverityCritical,
				Type:             "remediation_failure",
				Message:          fmt.Sprintf("告警 %s 的补救执行失败: %v", alert.ID, err),
				AffectedEntities: alert.AffectedEntities,
			})
			d.notify(ctx, failure)
		} else {
			alert.AutoExecuted = true
			d.markExecuted(alert.ID)
		}
	}

	return alert
}

// Recent 返回最近的告警，新的在前。
func (d *Dispatcher) Recent(limit int) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit <= 0 || limit > len(d.log) {
		limit = len(d.log)
	}
	out := make([]Alert, 0, limit)
	for i := len(d.log) - 1; i >= len(d.log)-limit; i-- {
		out = append(out, d.log[i])
	}
	return out
}

func (d *Dispatcher) register(event Event) Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	alert := Alert{
		ID:                 fmt.Sprintf("alert-%d-%d", time.Now().UnixNano(), d.seq),
		Timestamp:          time.Now().UTC(),
		Severity:           event.Severity,
		Type:               event.Type,
		Message:            event.Message,
		AffectedEntities:   event.AffectedEntities,
		RecommendedActions: event.RecommendedActions,
	}

	d.log = append(d.log, alert)
	if len(d.log) > d.retention {
		d.log = d.log[len(d.log)-d.retention:]
	}
	return alert
}

func (d *Dispatcher) notify(ctx context.Context, alert Alert) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, alert); err == nil {
		return
	}
	if err := d.notifier.Notify(ctx, alert); err != nil {
		metrics.DroppedNotifications.Inc()
		d.logger.Warn("告警通知重试后仍失败，已丢弃",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
	}
}

func (d *Dispatcher) remediate(ctx context.Context, alert Alert) error {
	for _, action := range alert.RecommendedActions {
		entities := alert.AffectedEntities
		if err := d.remediator.Remediate(ctx, action, entities); err != nil {
			return fmt.Errorf("执行动作 %s 失败: %w", action, err)
		}
	}
	return nil
}

func (d *Dispatcher) markExecuted(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.log {
		if d.log[i].ID == id {
			d.log[i].AutoExecuted = true
			return
		}
	}
}
