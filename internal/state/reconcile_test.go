package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type fakeRunRepo struct {
	storage.RunRepository
	run            *models.Run
	updatedStatus  models.RunStatus
	updateStatused bool
}

func (f *fakeRunRepo) Get(ctx context.Context, id string) (*models.Run, error) {
	return f.run, nil
}

func (f *fakeRunRepo) UpdateStatusWithTimeline(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error {
	if oldStatus != f.run.Status {
		return fmt.Errorf("lock conflict")
	}
	f.updateStatused = true
	f.updatedStatus = newStatus
	f.run.Status = newStatus
	if startedAt != nil {
		f.run.Timeline.StartedAt = startedAt
	}
	if completedAt != nil {
		f.run.Timeline.CompletedAt = completedAt
	}
	return nil
}

func (f *fakeRunRepo) Update(ctx context.Context, run *models.Run) error {
	f.run = run
	return nil
}

type fakeDAGRepo struct {
	storage.DAGRepository
	dag *models.DAG
}

func (f *fakeDAGRepo) Get(ctx context.Context, id string) (*models.DAG, error) {
	return f.dag, nil
}

func twoNodeDAG() *models.DAG {
	return &models.DAG{
		ID: "dag-1",
		Graph: models.Graph{
			Nodes: []models.Node{{ID: "a"}, {ID: "b"}},
			Edges: []models.Edge{{Source: "a", Target: "b"}},
		},
	}
}

func TestReconcileRun_PromotesQueuedToRunning(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunQueued,
		TaskRecords: []models.TaskRecord{{NodeID: "a", Status: models.TaskRunning, StartedAt: time.Now()}}}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, nil)

	if err := rc.ReconcileRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("ReconcileRun() error: %v", err)
	}
	if run.Status != models.RunRunning {
		t.Errorf("status = %s, want running", run.Status)
	}
}

func TestReconcileRun_SuccessWhenAllNodesComplete(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunRunning,
		TaskRecords: []models.TaskRecord{
			{NodeID: "a", Status: models.TaskSuccess, StartedAt: time.Now()},
			{NodeID: "b", Status: models.TaskSuccess, StartedAt: time.Now()},
		}}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, nil)

	if err := rc.ReconcileRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("ReconcileRun() error: %v", err)
	}
	if run.Status != models.RunSuccess {
		t.Errorf("status = %s, want success", run.Status)
	}
	if run.Timeline.CompletedAt == nil {
		t.Error("expected completedAt to be set")
	}
}

func TestReconcileRun_FailedWhenAnyNodeFailed(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunRunning,
		TaskRecords: []models.TaskRecord{
			{NodeID: "a", Status: models.TaskSuccess, StartedAt: time.Now()},
			{NodeID: "b", Status: models.TaskFailed, StartedAt: time.Now()},
		}}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, nil)

	if err := rc.ReconcileRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("ReconcileRun() error: %v", err)
	}
	if run.Status != models.RunFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
}

func TestReconcileRun_StaysRunningWhileNodeScheduled(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunRunning,
		TaskRecords: []models.TaskRecord{
			{NodeID: "a", Status: models.TaskSuccess, StartedAt: time.Now()},
			{NodeID: "b", Status: models.TaskScheduled, StartedAt: time.Now()},
		}}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, nil)

	if err := rc.ReconcileRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("ReconcileRun() error: %v", err)
	}
	if run.Status != models.RunRunning {
		t.Errorf("status = %s, want running (deferred node still scheduled)", run.Status)
	}
}

func TestReconcileRun_NoOpOnTerminalRun(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunSuccess}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, nil)

	if err := rc.ReconcileRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("ReconcileRun() error: %v", err)
	}
	if runs.updateStatused {
		t.Error("expected no status update for an already-terminal run")
	}
}

func TestCancelRun_FailsNonTerminalTasksAndCancelsRun(t *testing.T) {
	run := &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunRunning,
		TaskRecords: []models.TaskRecord{
			{NodeID: "a", Status: models.TaskSuccess},
			{NodeID: "b", Status: models.TaskRunning},
		}}
	runs := &fakeRunRepo{run: run}
	rc := NewReconciler(runs, &fakeDAGRepo{dag: twoNodeDAG()}, eventbus.NewMemoryBus())

	if err := rc.CancelRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("CancelRun() error: %v", err)
	}
	if run.Status != models.RunCancelled {
		t.Errorf("status = %s, want cancelled", run.Status)
	}
	if run.TaskRecords[1].Status != models.TaskFailed || run.TaskRecords[1].Error != "cancelled" {
		t.Errorf("node b = %+v, want failed/cancelled", run.TaskRecords[1])
	}
	if run.TaskRecords[0].Status != models.TaskSuccess {
		t.Errorf("node a should stay success, got %s", run.TaskRecords[0].Status)
	}
}
