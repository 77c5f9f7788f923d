package models

import (
	"testing"
	"time"
)

func TestSchedule_InWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	tests := []struct {
		name     string
		schedule Schedule
		expected bool
	}{
		{"no window", Schedule{}, true},
		{"inside window", Schedule{StartDate: &start, EndDate: &end}, true},
		{"before window", Schedule{StartDate: &end}, false},
		{"after window", Schedule{EndDate: &start}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.InWindow(now); got != tt.expected {
				t.Errorf("InWindow() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDAG_NodeByID(t *testing.T) {
	dag := &DAG{Graph: Graph{Nodes: []Node{
		{ID: "a", Kind: NodeKindHTTP},
		{ID: "b", Kind: NodeKindDelay},
	}}}

	if n := dag.NodeByID("b"); n == nil || n.Kind != NodeKindDelay {
		t.Fatalf("NodeByID(b) = %v, want node b", n)
	}
	if n := dag.NodeByID("missing"); n != nil {
		t.Fatalf("NodeByID(missing) = %v, want nil", n)
	}
}

func TestDAG_EffectiveRetryPolicy_DAGLevelWins(t *testing.T) {
	dag := &DAG{RetryPolicy: RetryPolicy{MaxAttempts: 5, Backoff: 10 * time.Second}}
	node := &Node{Config: map[string]interface{}{
		"retry": map[string]interface{}{"maxAttempts": float64(1)},
	}}

	policy := dag.EffectiveRetryPolicy(node)
	if policy.MaxAttempts != 5 {
		t.Errorf("expected DAG-level policy to win, got MaxAttempts=%d", policy.MaxAttempts)
	}
}

func TestDAG_EffectiveRetryPolicy_NodeLevelFallback(t *testing.T) {
	dag := &DAG{}
	node := &Node{Config: map[string]interface{}{
		"retry": map[string]interface{}{"maxAttempts": float64(7), "backoffMs": float64(500)},
	}}

	policy := dag.EffectiveRetryPolicy(node)
	if policy.MaxAttempts != 7 {
		t.Errorf("expected node-level maxAttempts 7, got %d", policy.MaxAttempts)
	}
	if policy.Backoff != 500*time.Millisecond {
		t.Errorf("expected node-level backoff 500ms, got %v", policy.Backoff)
	}
}

func TestDAG_EffectiveRetryPolicy_Default(t *testing.T) {
	dag := &DAG{}
	policy := dag.EffectiveRetryPolicy(nil)
	if policy != DefaultRetryPolicy() {
		t.Errorf("expected default policy, got %+v", policy)
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   RunStatus
		expected bool
	}{
		{RunQueued, false},
		{RunRunning, false},
		{RunSuccess, true},
		{RunFailed, true},
		{RunCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.expected {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{TaskRunning, false},
		{TaskScheduled, false},
		{TaskRetrying, false},
		{TaskSuccess, true},
		{TaskFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.expected {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}
