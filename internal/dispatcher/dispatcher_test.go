package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type fakeDAGRepo struct {
	storage.DAGRepository
	dag *models.DAG
}

func (f *fakeDAGRepo) Get(ctx context.Context, id string) (*models.DAG, error) {
	return f.dag, nil
}

type fakeRunRepo struct {
	storage.RunRepository
	created      *models.Run
	finalStatus  models.RunStatus
	statusCalled bool
}

func (f *fakeRunRepo) Create(ctx context.Context, run *models.Run) error {
	f.created = run
	return nil
}

func (f *fakeRunRepo) UpdateStatusWithTimeline(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error {
	f.statusCalled = true
	f.finalStatus = newStatus
	return nil
}

func activeDAG() *models.DAG {
	return &models.DAG{
		ID: "dag-1", Owner: "alice", Active: true,
		Graph: models.Graph{Nodes: []models.Node{{ID: "a"}, {ID: "b"}}, Edges: []models.Edge{{Source: "a", Target: "b"}}},
	}
}

func TestCreateRun_EnqueuesFrontier(t *testing.T) {
	runs := &fakeRunRepo{}
	q := queue.NewMemoryQueue()
	d := New(&fakeDAGRepo{dag: activeDAG()}, runs, q)

	run, err := d.CreateRun(context.Background(), "dag-1", "manual")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	if run.Status != models.RunQueued {
		t.Errorf("status = %s, want queued", run.Status)
	}
	if runs.created == nil {
		t.Fatal("expected run to be created")
	}
}

func TestCreateRun_RejectsInactiveDAG(t *testing.T) {
	def := activeDAG()
	def.Active = false
	d := New(&fakeDAGRepo{dag: def}, &fakeRunRepo{}, queue.NewMemoryQueue())

	_, err := d.CreateRun(context.Background(), "dag-1", "manual")
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected ValidationError for inactive DAG, got %v", err)
	}
}

func TestCreateRun_RejectsOutsideTriggerWindow(t *testing.T) {
	def := activeDAG()
	past := time.Now().Add(-time.Hour)
	def.Schedule.EndDate = &past
	d := New(&fakeDAGRepo{dag: def}, &fakeRunRepo{}, queue.NewMemoryQueue())

	_, err := d.CreateRun(context.Background(), "dag-1", "manual")
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected ValidationError outside trigger window, got %v", err)
	}
}

func TestCreateRun_EmptyGraphFailsImmediately(t *testing.T) {
	def := activeDAG()
	def.Graph = models.Graph{}
	runs := &fakeRunRepo{}
	d := New(&fakeDAGRepo{dag: def}, runs, queue.NewMemoryQueue())

	_, err := d.CreateRun(context.Background(), "dag-1", "manual")
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected ValidationError for empty graph, got %v", err)
	}
	if !runs.statusCalled || runs.finalStatus != models.RunFailed {
		t.Errorf("expected run to be force-failed, got status=%s called=%v", runs.finalStatus, runs.statusCalled)
	}
}

func TestEnqueueDependents_WaitsForAllPredecessors(t *testing.T) {
	def := &models.DAG{
		ID: "dag-1", Owner: "alice",
		Graph: models.Graph{
			Nodes: []models.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			Edges: []models.Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}},
		},
	}
	q := queue.NewMemoryQueue()
	var pushed []string
	_ = q.Subscribe(context.Background(), func(ctx context.Context, msg models.TaskMessage) error {
		pushed = append(pushed, msg.NodeID)
		return nil
	})
	d := New(&fakeDAGRepo{dag: def}, &fakeRunRepo{}, q)

	run := &models.Run{ID: "run-1", TaskRecords: []models.TaskRecord{{NodeID: "a", Status: models.TaskSuccess}}}
	if err := d.EnqueueDependents(context.Background(), run, "a", def); err != nil {
		t.Fatalf("EnqueueDependents() error: %v", err)
	}
	if q.DeadLetterCount() != 0 {
		t.Fatalf("unexpected dead letters: %d", q.DeadLetterCount())
	}
	if len(pushed) != 0 {
		t.Fatalf("enqueued %v while b is still incomplete, want nothing", pushed)
	}

	run.TaskRecords = append(run.TaskRecords, models.TaskRecord{NodeID: "b", Status: models.TaskSuccess})
	if err := d.EnqueueDependents(context.Background(), run, "b", def); err != nil {
		t.Fatalf("EnqueueDependents() error: %v", err)
	}
	if len(pushed) != 1 || pushed[0] != "c" {
		t.Fatalf("enqueued %v, want [c]", pushed)
	}
}

func TestEnqueueDependents_SkipsAlreadyRecorded(t *testing.T) {
	def := &models.DAG{
		ID: "dag-1",
		Graph: models.Graph{
			Nodes: []models.Node{{ID: "a"}, {ID: "b"}},
			Edges: []models.Edge{{Source: "a", Target: "b"}},
		},
	}
	q := queue.NewMemoryQueue()
	var pushed []string
	_ = q.Subscribe(context.Background(), func(ctx context.Context, msg models.TaskMessage) error {
		pushed = append(pushed, msg.NodeID)
		return nil
	})
	d := New(&fakeDAGRepo{dag: def}, &fakeRunRepo{}, q)

	run := &models.Run{ID: "run-1", TaskRecords: []models.TaskRecord{
		{NodeID: "a", Status: models.TaskSuccess},
		{NodeID: "b", Status: models.TaskRunning},
	}}
	if err := d.EnqueueDependents(context.Background(), run, "a", def); err != nil {
		t.Fatalf("EnqueueDependents() error: %v", err)
	}
	if len(pushed) != 0 {
		t.Fatalf("enqueued %v although b already has a record, want nothing", pushed)
	}
}
