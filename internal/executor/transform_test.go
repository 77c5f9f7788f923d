package executor

import (
	"context"
	"testing"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
)

func TestTransformExecutor_EvaluatesExpressionOverInput(t *testing.T) {
	e := NewTransformExecutor()
	rc := RunContext{PriorOutput: map[string]interface{}{"count": 3}}

	result, err := e.Execute(context.Background(), map[string]interface{}{"expression": "input.count + 1"}, rc)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.Output["result"] != int64(4) {
		t.Errorf("result = %v, want 4", result.Output["result"])
	}
}

func TestTransformExecutor_MissingExpression(t *testing.T) {
	e := NewTransformExecutor()
	_, err := e.Execute(context.Background(), map[string]interface{}{}, RunContext{})
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected ValidationError for missing expression, got %v", err)
	}
}

func TestTransformExecutor_InvalidExpression(t *testing.T) {
	e := NewTransformExecutor()
	_, err := e.Execute(context.Background(), map[string]interface{}{"expression": "input..."}, RunContext{})
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected ValidationError for invalid expression, got %v", err)
	}
}

func TestTransformExecutor_NilPriorOutput(t *testing.T) {
	e := NewTransformExecutor()
	result, err := e.Execute(context.Background(), map[string]interface{}{"expression": "1 + 1"}, RunContext{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.Output["result"] != int64(2) {
		t.Errorf("result = %v, want 2", result.Output["result"])
	}
}
