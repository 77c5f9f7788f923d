package executor

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// TransformExecutor is the "transform" node kind (spec §4.2): it evaluates
// a user-supplied expression over the prior node's output in a sandboxed
// evaluator rather than a real interpreter, following the CEL usage
// pattern used elsewhere in the ecosystem for filter-expression evaluation.
type TransformExecutor struct{}

// NewTransformExecutor creates a new transform executor.
func NewTransformExecutor() *TransformExecutor {
	return &TransformExecutor{}
}

func (e *TransformExecutor) Kind() models.NodeKind { return models.NodeKindTransform }

func (e *TransformExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	expr, _ := config["expression"].(string)
	if expr == "" {
		return nil, errs.New(errs.KindValidation, "transform task requires an expression", nil)
	}

	input := rc.PriorOutput
	if input == nil {
		input = map[string]interface{}{}
	}

	env, err := cel.NewEnv(cel.Variable("input", cel.DynType))
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to build expression environment: %v", err), err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("invalid expression: %v", issues.Err()), issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("failed to compile expression: %v", err), err)
	}

	out, _, err := program.ContextEval(ctx, map[string]interface{}{"input": input})
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("expression evaluation failed: %v", err), err)
	}

	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"result": out.Value()}}, nil
}
