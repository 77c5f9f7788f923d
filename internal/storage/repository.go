package storage

import (
	"context"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// DAGRepository defines the interface for DAG persistence.
type DAGRepository interface {
	Create(ctx context.Context, dag *models.DAG) error
	Get(ctx context.Context, id string) (*models.DAG, error)
	GetByOwnerAndName(ctx context.Context, owner, name string) (*models.DAG, error)
	GetByTriggerToken(ctx context.Context, token string) (*models.DAG, error)
	GetByTriggerPath(ctx context.Context, path string) (*models.DAG, error)
	List(ctx context.Context, filters DAGFilters) ([]*models.DAG, error)
	Update(ctx context.Context, dag *models.DAG) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	ListSchedulable(ctx context.Context) ([]*models.DAG, error)
}

// DAGFilters defines filters for listing DAGs.
type DAGFilters struct {
	Owner  string
	Active *bool
	Limit  int
	Offset int
}

// RunRepository defines the interface for Run persistence, including the
// optimistic-lock status transition used by ReconcileRun.
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	Get(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, filters RunFilters) ([]*models.Run, error)
	Update(ctx context.Context, run *models.Run) error
	UpdateStatus(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int) error
	UpdateStatusWithTimeline(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error
	AppendTaskRecord(ctx context.Context, id string, record models.TaskRecord, version int) error
	Delete(ctx context.Context, id string) error
	GetLatestRun(ctx context.Context, dagID string) (*models.Run, error)
}

// RunFilters defines filters for listing runs.
type RunFilters struct {
	DAGID  string
	Status *models.RunStatus
	After  *time.Time
	Before *time.Time
	Limit  int
	Offset int
}

// WorkerRepository defines the interface for worker heartbeat persistence
// (C10, spec §4.9).
type WorkerRepository interface {
	Upsert(ctx context.Context, worker *models.Worker) error
	Get(ctx context.Context, workerID string) (*models.Worker, error)
	List(ctx context.Context) ([]*models.Worker, error)
	MarkOffline(ctx context.Context, workerID string) error
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.Worker, error)
}

// DeferredEmailRepository defines the interface for deferred email
// persistence (C8, spec §4.8).
type DeferredEmailRepository interface {
	Create(ctx context.Context, email *models.DeferredEmail) error
	Get(ctx context.Context, id string) (*models.DeferredEmail, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.DeferredEmail, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	CancelByRunID(ctx context.Context, runID string) error
}
