package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/executor"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/state"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type stubDAGRepo struct {
	storage.DAGRepository
	dags map[string]*models.DAG
}

func (s *stubDAGRepo) Get(ctx context.Context, id string) (*models.DAG, error) {
	if d, ok := s.dags[id]; ok {
		return d, nil
	}
	return nil, errors.New("dag not found")
}

type stubRunRepo struct {
	storage.RunRepository
	runs map[string]*models.Run
}

func (s *stubRunRepo) Get(ctx context.Context, id string) (*models.Run, error) {
	r, ok := s.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	cp := *r
	return &cp, nil
}

func (s *stubRunRepo) Update(ctx context.Context, run *models.Run) error {
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *stubRunRepo) AppendTaskRecord(ctx context.Context, id string, record models.TaskRecord, version int) error {
	run, ok := s.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	run.TaskRecords = append(run.TaskRecords, record)
	return nil
}

func (s *stubRunRepo) UpdateStatusWithTimeline(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error {
	run, ok := s.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	run.Status = newStatus
	if startedAt != nil {
		run.Timeline.StartedAt = startedAt
	}
	if completedAt != nil {
		run.Timeline.CompletedAt = completedAt
	}
	return nil
}

type stubWorkerRepo struct {
	storage.WorkerRepository
}

func (s *stubWorkerRepo) Upsert(ctx context.Context, w *models.Worker) error { return nil }

type alwaysSucceedExecutor struct{}

func (alwaysSucceedExecutor) Kind() models.NodeKind { return models.NodeKindDelay }
func (alwaysSucceedExecutor) Execute(ctx context.Context, config map[string]interface{}, rc executor.RunContext) (*executor.TaskResult, error) {
	return &executor.TaskResult{Outcome: executor.OutcomeSuccess, Output: map[string]interface{}{"ok": true}}, nil
}

func newTestWorker(dags *stubDAGRepo, runs *stubRunRepo) *Worker {
	q := queue.NewMemoryQueue()
	registry := executor.NewRegistry()
	registry.Register(alwaysSucceedExecutor{})
	bus := eventbus.NewMemoryBus()
	disp := dispatcher.New(dags, runs, q)
	reconciler := state.NewReconciler(runs, dags, bus)
	return New(q, registry, dags, runs, &stubWorkerRepo{}, disp, reconciler, bus)
}

func singleNodeDAG() *models.DAG {
	return &models.DAG{
		ID: "dag-1",
		Graph: models.Graph{
			Nodes: []models.Node{{ID: "n1", Kind: models.NodeKindDelay, DisplayName: "n1"}},
		},
	}
}

func TestHandle_SuccessMarksRecordAndReconciles(t *testing.T) {
	dag := singleNodeDAG()
	run := &models.Run{ID: "run-1", DAGID: dag.ID, Status: models.RunQueued}
	dags := &stubDAGRepo{dags: map[string]*models.DAG{dag.ID: dag}}
	runs := &stubRunRepo{runs: map[string]*models.Run{run.ID: run}}
	w := newTestWorker(dags, runs)

	msg := models.TaskMessage{RunID: run.ID, DAGID: dag.ID, NodeID: "n1", Attempt: 1}
	if err := w.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle() error: %v", err)
	}

	stored := runs.runs[run.ID]
	rec := stored.RecordByNodeID("n1")
	if rec == nil || rec.Status != models.TaskSuccess {
		t.Fatalf("record = %+v, want TaskSuccess", rec)
	}
	if stored.Status != models.RunSuccess {
		t.Errorf("run status = %s, want RunSuccess", stored.Status)
	}
}

func TestHandle_InvalidMessageGoesToDeadLetter(t *testing.T) {
	dags := &stubDAGRepo{dags: map[string]*models.DAG{}}
	runs := &stubRunRepo{runs: map[string]*models.Run{}}
	w := newTestWorker(dags, runs)

	if err := w.handle(context.Background(), models.TaskMessage{}); err != nil {
		t.Fatalf("handle() error: %v", err)
	}
}

func TestHandle_MissingDAGDeadLetters(t *testing.T) {
	run := &models.Run{ID: "run-2", DAGID: "missing-dag", Status: models.RunQueued}
	dags := &stubDAGRepo{dags: map[string]*models.DAG{}}
	runs := &stubRunRepo{runs: map[string]*models.Run{run.ID: run}}
	w := newTestWorker(dags, runs)

	msg := models.TaskMessage{RunID: run.ID, DAGID: "missing-dag", NodeID: "n1", Attempt: 1}
	if err := w.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle() error: %v", err)
	}
}

func TestHandle_UnknownNodeKindFailsAndRetries(t *testing.T) {
	dag := &models.DAG{
		ID: "dag-3",
		Graph: models.Graph{
			Nodes: []models.Node{{ID: "n1", Kind: models.NodeKindHTTP, DisplayName: "n1"}},
		},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
	run := &models.Run{ID: "run-3", DAGID: dag.ID, Status: models.RunQueued}
	dags := &stubDAGRepo{dags: map[string]*models.DAG{dag.ID: dag}}
	runs := &stubRunRepo{runs: map[string]*models.Run{run.ID: run}}
	w := newTestWorker(dags, runs)

	msg := models.TaskMessage{RunID: run.ID, DAGID: dag.ID, NodeID: "n1", Attempt: 1}
	if err := w.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle() error: %v", err)
	}

	stored := runs.runs[run.ID]
	rec := stored.RecordByNodeID("n1")
	if rec == nil || rec.Status != models.TaskRetrying {
		t.Fatalf("record = %+v, want TaskRetrying", rec)
	}
}
