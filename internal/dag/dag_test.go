package dag

import (
	"testing"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

func TestValidator_Validate_OK(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(diamondDAG()); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidator_Validate_EmptyName(t *testing.T) {
	d := diamondDAG()
	d.Name = ""
	if err := NewValidator().Validate(d); err == nil {
		t.Error("expected error for empty DAG name")
	}
}

func TestValidator_Validate_DuplicateNodeID(t *testing.T) {
	d := diamondDAG()
	d.Graph.Nodes = append(d.Graph.Nodes, models.Node{ID: "a", Kind: models.NodeKindHTTP})
	if err := NewValidator().Validate(d); err == nil {
		t.Error("expected error for duplicate node id")
	}
}

func TestValidator_Validate_DanglingEdge(t *testing.T) {
	d := diamondDAG()
	d.Graph.Edges = append(d.Graph.Edges, models.Edge{Source: "a", Target: "missing"})
	if err := NewValidator().Validate(d); err == nil {
		t.Error("expected error for edge referencing a missing node")
	}
}

func TestValidator_Validate_Cycle(t *testing.T) {
	d := diamondDAG()
	d.Graph.Edges = append(d.Graph.Edges, models.Edge{Source: "d", Target: "a"})
	if err := NewValidator().Validate(d); err == nil {
		t.Error("expected error for a cyclic graph")
	}
}

func TestValidator_Validate_NegativeMaxAttempts(t *testing.T) {
	d := diamondDAG()
	d.RetryPolicy.MaxAttempts = -1
	if err := NewValidator().Validate(d); err == nil {
		t.Error("expected error for negative retryPolicy.maxAttempts")
	}
}
