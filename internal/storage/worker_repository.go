package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type workerRepository struct {
	db *gorm.DB
}

// NewWorkerRepository creates a new worker heartbeat repository. There is
// no reference equivalent; it follows dagRepository's CRUD shape applied
// to the heartbeat rows the monitor (C10, spec §4.9) reads and writes.
func NewWorkerRepository(db *gorm.DB) WorkerRepository {
	return &workerRepository{db: db}
}

func (r *workerRepository) Upsert(ctx context.Context, worker *models.Worker) error {
	model := FromWorker(worker)
	err := r.db.WithContext(ctx).
		Where("worker_id = ?", model.WorkerID).
		Assign(model).
		FirstOrCreate(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert worker: %w", err)
	}
	return nil
}

func (r *workerRepository) Get(ctx context.Context, workerID string) (*models.Worker, error) {
	var model WorkerModel
	if err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("worker not found: %s", workerID)
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return model.ToWorker(), nil
}

func (r *workerRepository) List(ctx context.Context) ([]*models.Worker, error) {
	var models_ []WorkerModel
	if err := r.db.WithContext(ctx).Find(&models_).Error; err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	out := make([]*models.Worker, len(models_))
	for i := range models_ {
		out[i] = models_[i].ToWorker()
	}
	return out, nil
}

func (r *workerRepository) MarkOffline(ctx context.Context, workerID string) error {
	if err := r.db.WithContext(ctx).Model(&WorkerModel{}).
		Where("worker_id = ?", workerID).
		Update("status", string(models.WorkerStatusOffline)).Error; err != nil {
		return fmt.Errorf("failed to mark worker offline: %w", err)
	}
	return nil
}

// ListStale returns workers whose last heartbeat is older than the cutoff,
// feeding the health monitor's offline sweep (spec §4.9).
func (r *workerRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Worker, error) {
	var models_ []WorkerModel
	if err := r.db.WithContext(ctx).
		Where("last_heartbeat < ? AND status != ?", olderThan, string(models.WorkerStatusOffline)).
		Find(&models_).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale workers: %w", err)
	}
	out := make([]*models.Worker, len(models_))
	for i := range models_ {
		out[i] = models_[i].ToWorker()
	}
	return out, nil
}
