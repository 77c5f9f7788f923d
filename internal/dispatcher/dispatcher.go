// Package dispatcher implements C6: it materializes a DAG into a Run and
// walks completed nodes forward through the graph, enqueueing the next
// frontier once every predecessor has succeeded (spec §4.4).
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harshitdeora/task-schedular-sub000/internal/dag"
	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Dispatcher is the C6 contract implementation.
type Dispatcher struct {
	dags  storage.DAGRepository
	runs  storage.RunRepository
	queue queue.Queue
}

// New creates a new Dispatcher.
func New(dags storage.DAGRepository, runs storage.RunRepository, q queue.Queue) *Dispatcher {
	return &Dispatcher{dags: dags, runs: runs, queue: q}
}

// CreateRun validates the DAG is active and within its trigger window,
// computes the frontier, and enqueues one TaskMessage per frontier node.
// An empty frontier (empty graph) fails the run immediately rather than
// leaving it queued forever (spec §4.4).
func (d *Dispatcher) CreateRun(ctx context.Context, dagID, triggeredBy string) (*models.Run, error) {
	def, err := d.dags.Get(ctx, dagID)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: load dag: %w", err)
	}
	if !def.Active {
		return nil, errs.New(errs.KindValidation, "dag is not active", nil)
	}
	if !def.Schedule.InWindow(time.Now().UTC()) {
		return nil, errs.New(errs.KindValidation, "dag is outside its trigger window", nil)
	}

	g := dag.NewGraph(def)
	frontier := g.Frontier()

	now := time.Now().UTC()
	run := &models.Run{
		ID:          uuid.NewString(),
		DAGID:       def.ID,
		Owner:       def.Owner,
		Status:      models.RunQueued,
		TriggeredBy: triggeredBy,
		Timeline:    models.Timeline{QueuedAt: now},
		Version:     0,
	}

	if len(frontier) == 0 {
		if err := d.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("dispatcher: create empty run: %w", err)
		}
		completedAt := time.Now().UTC()
		if err := d.runs.UpdateStatusWithTimeline(ctx, run.ID, models.RunQueued, models.RunFailed, run.Version, &now, &completedAt); err != nil {
			return nil, fmt.Errorf("dispatcher: fail empty run: %w", err)
		}
		return nil, errs.New(errs.KindValidation, "empty_graph", nil)
	}

	if err := d.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("dispatcher: create run: %w", err)
	}

	for _, nodeID := range frontier {
		msg := models.TaskMessage{RunID: run.ID, DAGID: def.ID, NodeID: nodeID, Attempt: 1, UserID: def.Owner}
		if err := d.queue.Push(ctx, msg); err != nil {
			return nil, fmt.Errorf("dispatcher: enqueue frontier node %s: %w", nodeID, err)
		}
	}

	return run, nil
}

// EnqueueDependents enqueues every dependent of completedNodeID whose
// predecessors have all succeeded in this run and which has no existing
// taskRecord yet (double-enqueue defense), in DAG-declared node order
// (spec §4.4).
func (d *Dispatcher) EnqueueDependents(ctx context.Context, run *models.Run, completedNodeID string, def *models.DAG) error {
	g := dag.NewGraph(def)

	successful := map[string]bool{}
	for _, tr := range run.TaskRecords {
		if tr.Status == models.TaskSuccess {
			successful[tr.NodeID] = true
		}
	}

	for _, dependentID := range g.Dependents(completedNodeID) {
		if !g.AllSatisfied(dependentID, successful) {
			continue
		}
		if run.HasRecordFor(dependentID) {
			continue
		}
		msg := models.TaskMessage{RunID: run.ID, DAGID: def.ID, NodeID: dependentID, Attempt: 1, UserID: def.Owner}
		if err := d.queue.Push(ctx, msg); err != nil {
			return fmt.Errorf("dispatcher: enqueue dependent %s: %w", dependentID, err)
		}
	}
	return nil
}
