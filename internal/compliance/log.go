package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ViolationLog 持久化违规记录并承接运营人员的状态流转。
type ViolationLog struct {
	db *sql.DB
}

// NewViolationLog 创建违规日志并初始化表结构。
func NewViolationLog(db *sql.DB) (*ViolationLog, error) {
	if db == nil {
		return nil, errors.New("compliance: 数据库实例不能为空")
	}

	log := &ViolationLog{db: db}
	if err := log.initSchema(); err != nil {
		return nil, err
	}
	return log, nil
}

func (l *ViolationLog) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS compliance_violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			severity TEXT NOT NULL,
			current_value REAL NOT NULL,
			allowed_value REAL NOT NULL,
			affected_entities TEXT,
			status TEXT NOT NULL DEFAULT 'open'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_status ON compliance_violations(status);`,
		`CREATE INDEX IF NOT EXISTS idx_violations_rule ON compliance_violations(rule_id);`,
	}
	for _, stmt := range schema {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("compliance: 初始化表结构失败: %w", err)
		}
	}
	return nil
}

// Record 写入一条 open 状态的违规并回填生成的ID。
func (l *ViolationLog) Record(ctx context.Context, v *Violation) error {
	entities, err := json.Marshal(v.AffectedEntities)
	if err != nil {
		return fmt.Errorf("compliance: 序列化受影响实体失败: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO compliance_violations (rule_id, occurred_at, severity, current_value, allowed_value, affected_entities, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.RuleID, v.Timestamp.UTC().Format(time.RFC3339), v.Severity,
		v.CurrentValue, v.AllowedValue, string(entities), string(StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("compliance: 写入违规记录失败: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("compliance: 读取违规记录ID失败: %w", err)
	}
	v.ID = id
	v.Status = StatusOpen
	return nil
}

// Acknowledge 将 open 状态的违规标记为已确认。
func (l *ViolationLog) Acknowledge(ctx context.Context, id int64) error {
	return l.transition(ctx, id, StatusOpen, StatusAcknowledged)
}

// Resolve 将已确认的违规标记为已解决。
func (l *ViolationLog) Resolve(ctx context.Context, id int64) error {
	return l.transition(ctx, id, StatusAcknowledged, StatusResolved)
}

func (l *ViolationLog) transition(ctx context.Context, id int64, from, to Status) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE compliance_violations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("compliance: 更新违规状态失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compliance: 读取更新行数失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("compliance: 违规 %d 不存在或状态不是 %s", id, from)
	}
	return nil
}

// ListByStatus 按状态查询违规，按时间倒序。
func (l *ViolationLog) ListByStatus(ctx context.Context, status Status, limit int) ([]Violation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, rule_id, occurred_at, severity, current_value, allowed_value, affected_entities, status
		 FROM compliance_violations WHERE status = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("compliance: 查询违规记录失败: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var (
			v        Violation
			ts       string
			entities sql.NullString
			status   string
		)
		if err := rows.Scan(&v.ID, &v.RuleID, &ts, &v.Severity, &v.CurrentValue, &v.AllowedValue, &entities, &status); err != nil {
			return nil, fmt.Errorf("compliance: 读取违规记录失败: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			v.Timestamp = parsed
		}
		if entities.Valid && entities.String != "" {
			if err := json.Unmarshal([]byte(entities.String), &v.AffectedEntities); err != nil {
				return nil, fmt.Errorf("compliance: 解析受影响实体失败: %w", err)
			}
		}
		v.Status = Status(status)
		out = append(out, v)
	}
	return out, rows.Err()
}
