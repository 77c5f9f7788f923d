// Package state implements §4.5's run-completion rule as a single
// reconciliation procedure, replacing the reference's generic
// StateMachine/Manager transition-table approach: §4.5 is a pure function
// of a run's task records rather than a table of legal (from, to) pairs,
// so centralizing it here removes the need for a separate validator.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Reconciler applies the run-completion rule (spec §4.5). It is called
// from the worker's success/failure paths and from the deferred-email
// handler, per the design note recommending a single ReconcileRun
// procedure over ad-hoc reconciliation scattered across call sites.
type Reconciler struct {
	runs storage.RunRepository
	dags storage.DAGRepository
	bus  eventbus.EventBus
}

// NewReconciler constructs a Reconciler.
func NewReconciler(runs storage.RunRepository, dags storage.DAGRepository, bus eventbus.EventBus) *Reconciler {
	return &Reconciler{runs: runs, dags: dags, bus: bus}
}

// ReconcileRun reloads the run and its DAG, recomputes the derived status
// per §4.5, and performs the optimistic-lock write if a transition
// applies. It is idempotent: calling it when no transition is due is a
// no-op. Callers should retry on storage.ErrOptimisticLock since another
// writer updated the run concurrently and the recomputation is now stale.
func (rc *Reconciler) ReconcileRun(ctx context.Context, runID string) error {
	run, err := rc.runs.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("reconcile: load run: %w", err)
	}
	if run.Status.IsTerminal() {
		return nil
	}

	dag, err := rc.dags.Get(ctx, run.DAGID)
	if err != nil {
		return fmt.Errorf("reconcile: load dag: %w", err)
	}
	n := len(dag.Graph.Nodes)

	completed := map[string]bool{}
	failedNodes := map[string]bool{}
	running := map[string]bool{}
	scheduled := map[string]bool{}
	var earliestStarted *time.Time

	for _, tr := range run.TaskRecords {
		switch tr.Status {
		case models.TaskSuccess:
			completed[tr.NodeID] = true
		case models.TaskFailed:
			completed[tr.NodeID] = true
			failedNodes[tr.NodeID] = true
		case models.TaskRunning, models.TaskRetrying:
			running[tr.NodeID] = true
		case models.TaskScheduled:
			scheduled[tr.NodeID] = true
		}
		started := tr.StartedAt
		if earliestStarted == nil || started.Before(*earliestStarted) {
			earliestStarted = &started
		}
	}

	var newStatus models.RunStatus
	var startedAt, completedAt *time.Time

	switch {
	case len(scheduled) > 0:
		// Rule 1: the deferred-email invariant — the run cannot terminate
		// while any node is awaiting its fire time.
		newStatus = models.RunRunning

	case len(completed) == n && len(running) == 0:
		// Rule 2: every node has a terminal record and nothing is in flight.
		if len(failedNodes) > 0 {
			newStatus = models.RunFailed
		} else {
			newStatus = models.RunSuccess
		}
		now := time.Now().UTC()
		completedAt = &now
		if run.Timeline.StartedAt == nil {
			if earliestStarted != nil {
				startedAt = earliestStarted
			} else {
				startedAt = &run.Timeline.QueuedAt
			}
		}

	case run.Status == models.RunQueued && len(run.TaskRecords) > 0:
		// Rule 3: promote queued -> running on first task-record write.
		newStatus = models.RunRunning
		now := time.Now().UTC()
		startedAt = &now

	default:
		// Rule 4: no transition.
		return nil
	}

	if newStatus == run.Status && startedAt == nil && completedAt == nil {
		return nil
	}

	if err := rc.runs.UpdateStatusWithTimeline(ctx, run.ID, run.Status, newStatus, run.Version, startedAt, completedAt); err != nil {
		return fmt.Errorf("reconcile: update run status: %w", err)
	}

	if rc.bus != nil {
		_ = rc.bus.PublishRunUpdate(eventbus.RunUpdate{
			RunID:     run.ID,
			Status:    string(newStatus),
			Timeline:  run.Timeline,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// CancelRun forces a run to `cancelled` and marks every non-terminal
// taskRecord as `failed` with error="cancelled" (spec §4.5, manual
// override; §7 Unauthorized/ValidationError guard the caller boundary,
// not this procedure).
func (rc *Reconciler) CancelRun(ctx context.Context, runID string) error {
	run, err := rc.runs.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("cancel: load run: %w", err)
	}
	if run.Status.IsTerminal() {
		return nil
	}

	for i := range run.TaskRecords {
		if !run.TaskRecords[i].Status.IsTerminal() {
			run.TaskRecords[i].Status = models.TaskFailed
			run.TaskRecords[i].Error = "cancelled"
		}
	}

	now := time.Now().UTC()
	if err := rc.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("cancel: persist task records: %w", err)
	}
	if err := rc.runs.UpdateStatusWithTimeline(ctx, run.ID, run.Status, models.RunCancelled, run.Version, nil, &now); err != nil {
		return fmt.Errorf("cancel: update run status: %w", err)
	}

	if rc.bus != nil {
		_ = rc.bus.PublishRunUpdate(eventbus.RunUpdate{
			RunID:     run.ID,
			Status:    string(models.RunCancelled),
			Timeline:  run.Timeline,
			Timestamp: now,
		})
	}
	return nil
}
