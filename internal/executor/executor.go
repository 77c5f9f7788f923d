// Package executor implements C4: one pure function per task kind mapping
// a node's config to an output value or a typed failure (spec §4.2). The
// reference's Executor/TaskExecutor split (an orchestration-level Executor
// plus a per-kind TaskExecutor) collapses here to just the per-kind
// interface — orchestration is the Worker's job (internal/worker, C5), not
// the executor's, per the design note modeling executors as one
// interface{kind, execute(config, ctx)} per kind with a registry.
package executor

import (
	"context"
	"fmt"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// RunContext carries the identifiers and the single piece of state an
// executor is allowed to read beyond its own config: the owning user's
// identity (for the email executor's own SMTP credential lookup) and the
// prior node's output (for script/transform input injection).
type RunContext struct {
	RunID       string
	NodeID      string
	DisplayName string
	UserID      string
	PriorOutput map[string]interface{}
}

// Outcome distinguishes an ordinary success from the "scheduled" sentinel
// the email executor returns when a send is deferred (spec §4.2, §4.3
// step 8).
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeScheduled Outcome = "scheduled"
)

// TaskResult is the value an executor returns on success (including the
// scheduled sentinel); failures are reported via error, not this struct.
type TaskResult struct {
	Outcome Outcome
	Output  map[string]interface{}
}

// TaskExecutor is the C4 contract: one pure function per node kind.
// Executors do not write run or task state — the Worker owns that
// persistence (spec §4.2). The one store write an executor makes is the
// email executor's DeferredEmail insert for a deferred send.
type TaskExecutor interface {
	Kind() models.NodeKind
	Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error)
}

// Registry resolves a TaskExecutor by node kind.
type Registry struct {
	executors map[models.NodeKind]TaskExecutor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[models.NodeKind]TaskExecutor)}
}

// Register adds an executor, keyed by the kind it reports.
func (r *Registry) Register(e TaskExecutor) {
	r.executors[e.Kind()] = e
}

// For resolves the executor for a kind, or reports it is unknown.
func (r *Registry) For(kind models.NodeKind) (TaskExecutor, error) {
	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for kind %q", kind)
	}
	return e, nil
}
