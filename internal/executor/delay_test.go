package executor

import (
	"context"
	"testing"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

func TestDelayExecutor_SleepsRequestedDuration(t *testing.T) {
	e := NewDelayExecutor()
	if e.Kind() != models.NodeKindDelay {
		t.Fatalf("Kind() = %s, want delay", e.Kind())
	}

	start := time.Now()
	result, err := e.Execute(context.Background(), map[string]interface{}{"durationMs": float64(20)}, RunContext{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 20ms", elapsed)
	}
	if result.Outcome != OutcomeSuccess {
		t.Errorf("outcome = %s, want success", result.Outcome)
	}
}

func TestDelayExecutor_ClampsToMax(t *testing.T) {
	e := NewDelayExecutor()
	result, err := e.Execute(context.Background(), map[string]interface{}{"durationMs": float64(999_999_999)}, RunContext{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	slept, _ := result.Output["slept"].(int64)
	if time.Duration(slept)*time.Millisecond != maxDelay {
		t.Errorf("slept = %dms, want clamped to %v", slept, maxDelay)
	}
}

func TestDelayExecutor_ContextCancellation(t *testing.T) {
	e := NewDelayExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, map[string]interface{}{"durationMs": float64(10_000)}, RunContext{})
	if err == nil {
		t.Error("expected error on cancelled context")
	}
}
