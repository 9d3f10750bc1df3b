package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hydra-core/internal/alert"
	"hydra-core/internal/allocator"
	"hydra-core/internal/compliance"
	"hydra-core/internal/ensemble"
	"hydra-core/internal/execution"
	"hydra-core/internal/regime"
	"hydra-core/internal/risk"
	"hydra-core/internal/signal"
	"hydra-core/internal/store"
	"hydra-core/internal/stress"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSignals 记录一轮信号采集与当时的市况。
func (s *Service) RecordSignals(ctx context.Context, signals []signal.StrategySignal, reg regime.Regime) {
	s.record(ctx, EventSignals, SignalsPayload{Signals: signals, Regime: reg}, "记录信号事件失败")
}

// RecordDecision 记录共识决策。
func (s *Service) RecordDecision(ctx context.Context, decision ensemble.Decision) {
	s.record(ctx, EventDecision, DecisionPayload{Decision: decision}, "记录决策事件失败")
}

// RecordAdmission 记录准入判定。
func (s *Service) RecordAdmission(ctx context.Context, verdict risk.Verdict, decision ensemble.Decision) {
	s.record(ctx, EventAdmission, AdmissionPayload{Verdict: verdict, Decision: decision}, "记录准入事件失败")
}

// RecordRisk 记录限额巡检。
func (s *Service) RecordRisk(ctx context.Context, snap risk.PortfolioSnapshot, limits []risk.RiskLimit) {
	s.record(ctx, EventRiskEvaluation, RiskEvaluationPayload{Snapshot: snap, Limits: limits}, "记录风控事件失败")
}

// RecordRebalance 记录资金再平衡。
func (s *Service) RecordRebalance(ctx context.Context, allocation allocator.Allocation, reg regime.Regime) {
	s.record(ctx, EventRebalance, RebalancePayload{Allocation: allocation, Regime: reg}, "记录再平衡事件失败")
}

// RecordStressTest 记录压力测试结果。
func (s *Service) RecordStressTest(ctx context.Context, result stress.Result) {
	s.record(ctx, EventStressTest, StressTestPayload{Result: result}, "记录压力测试事件失败")
}

// RecordCompliance 记录合规违规。
func (s *Service) RecordCompliance(ctx context.Context, violations []compliance.Violation) {
	s.record(ctx, EventCompliance, CompliancePayload{Violations: violations}, "记录合规事件失败")
}

// RecordAlert 记录告警分发。
func (s *Service) RecordAlert(ctx context.Context, a alert.Alert) {
	s.record(ctx, EventAlert, AlertPayload{Alert: a}, "记录告警事件失败")
}

// RecordExecution 记录订单执行。
func (s *Service) RecordExecution(ctx context.Context, fill execution.Fill) {
	s.record(ctx, EventExecution, ExecutionPayload{Fill: fill}, "记录执行事件失败")
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.record(ctx, EventError, payload, "记录异常事件失败")
}

func (s *Service) record(ctx context.Context, eventType EventType, payload interface{}, failMsg string) {
	if err := s.Record(ctx, Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn(failMsg, zap.Error(err))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
