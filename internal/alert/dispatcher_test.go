package alert

import (
	"context"
	"errors"
	"testing"
)

type stubNotifier struct {
	calls    int
	failures int
}

func (n *stubNotifier) Notify(_ context.Context, _ Alert) error {
	n.calls++
	if n.calls <= n.failures {
		return errors.New("channel unavailable")
	}
	return nil
}

type stubRemediator struct {
	actions []string
	err     error
}

func (r *stubRemediator) Remediate(_ context.Context, action string, _ []string) error {
	if r.err != nil {
		return r.err
	}
	r.actions = append(r.actions, action)
	return nil
}

func TestDispatch_NotifyRetriesOnce(t *testing.T) {
	n := &stubNotifier{failures: 1}
	d := NewDispatcher(n, nil, 10, nil)

	d.Dispatch(context.Background(), Event{Severity: SeverityWarning, Type: "limit_warning", Message: "leverage high"})
	if n.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", n.calls)
	}
}

func TestDispatch_DropsAfterRetry(t *testing.T) {
	n := &stubNotifier{failures: 2}
	d := NewDispatcher(n, nil, 10, nil)

	d.Dispatch(context.Background(), Event{Severity: SeverityInfo, Type: "note", Message: "m"})
	if n.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", n.calls)
	}
	// 丢弃后告警仍留在日志中。
	if len(d.Recent(10)) != 1 {
		t.Fatal("dropped notification must not drop the alert itself")
	}
}

func TestDispatch_CriticalRemediationOnce(t *testing.T) {
	r := &stubRemediator{}
	d := NewDispatcher(nil, r, 10, nil)

	alert := d.Dispatch(context.Background(), Event{
		Severity:           SeverityCritical,
		Type:               "limit_breach",
		Message:            "leverage critical",
		AffectedEntities:   []string{"BTC/USDT:USDT"},
		RecommendedActions: []string{ActionReducePositions},
	})

	if !alert.AutoExecuted {
		t.Fatal("successful remediation must mark autoExecuted")
	}
	if len(r.actions) != 1 || r.actions[0] != ActionReducePositions {
		t.Fatalf("remediation must run exactly once, got %v", r.actions)
	}

	logged := d.Recent(1)
	if len(logged) != 1 || !logged[0].AutoExecuted {
		t.Fatal("logged alert must carry autoExecuted")
	}
}

func TestDispatch_NonCriticalSkipsRemediation(t *testing.T) {
	r := &stubRemediator{}
	d := NewDispatcher(nil, r, 10, nil)

	d.Dispatch(context.Background(), Event{
		Severity:           SeverityWarning,
		Type:               "limit_warning",
		RecommendedActions: []string{ActionReducePositions},
	})
	if len(r.actions) != 0 {
		t.Fatalf("non-critical alerts must not remediate, got %v", r.actions)
	}
}

func TestDispatch_RemediationFailureRaisesNewAlert(t *testing.T) {
	r := &stubRemediator{err: errors.New("executor offline")}
	d := NewDispatcher(nil, r, 10, nil)

	alert := d.Dispatch(context.Background(), Event{
		Severity:           SeverityCritical,
		Type:               "limit_breach",
		RecommendedActions: []string{ActionBlockNewPositions},
	})
	if alert.AutoExecuted {
		t.Fatal("failed remediation must not mark autoExecuted")
	}

	recent := d.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected the original alert plus a failure alert, got %d", len(recent))
	}
	if recent[0].Type != "remediation_failure" {
		t.Fatalf("newest alert must report the failure, got %s", recent[0].Type)
	}
}

func TestRecent_BoundedRetention(t *testing.T) {
	d := NewDispatcher(nil, nil, 3, nil)
	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), Event{Severity: SeverityInfo, Type: "note"})
	}
	if got := len(d.Recent(10)); got != 3 {
		t.Fatalf("retention must cap the log at 3, got %d", got)
	}
}
