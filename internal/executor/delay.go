package executor

import (
	"context"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const maxDelay = 3_600_000 * time.Millisecond

// DelayExecutor is the "delay" node kind (spec §4.2): sleep bounded to
// [0, 3,600,000] ms.
type DelayExecutor struct{}

// NewDelayExecutor creates a new delay executor.
func NewDelayExecutor() *DelayExecutor {
	return &DelayExecutor{}
}

func (e *DelayExecutor) Kind() models.NodeKind { return models.NodeKindDelay }

func (e *DelayExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	ms, _ := config["durationMs"].(float64)
	duration := time.Duration(ms) * time.Millisecond
	if duration < 0 {
		duration = 0
	}
	if duration > maxDelay {
		duration = maxDelay
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"slept": duration.Milliseconds()}}, nil
	case <-ctx.Done():
		return nil, errs.New(errs.KindTimeout, "delay interrupted by context cancellation", ctx.Err())
	}
}
