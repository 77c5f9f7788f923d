package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new Run repository, adapted from the
// reference's dagRunRepository but with state-machine validation removed:
// ReconcileRun owns transition legality (spec §4.5), the repository only
// owns the optimistic-lock write.
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.Run) error {
	model, err := FromRun(run)
	if err != nil {
		return fmt.Errorf("failed to convert run to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	run.ID = model.ID.String()
	run.Version = model.Version
	return nil
}

func (r *runRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %w", err)
	}

	var model RunModel
	if err := r.db.WithContext(ctx).Where("id = ?", runID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return model.ToRun()
}

func (r *runRepository) List(ctx context.Context, filters RunFilters) ([]*models.Run, error) {
	query := r.db.WithContext(ctx).Model(&RunModel{})

	if filters.DAGID != "" {
		dagID, err := uuid.Parse(filters.DAGID)
		if err != nil {
			return nil, fmt.Errorf("invalid DAG ID: %w", err)
		}
		query = query.Where("dag_id = ?", dagID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", string(*filters.Status))
	}
	if filters.After != nil {
		query = query.Where("queued_at > ?", *filters.After)
	}
	if filters.Before != nil {
		query = query.Where("queued_at < ?", *filters.Before)
	}

	query = query.Order("queued_at DESC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var runModels []RunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*models.Run, 0, len(runModels))
	for _, model := range runModels {
		run, err := model.ToRun()
		if err != nil {
			return nil, fmt.Errorf("failed to decode run %s: %w", model.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *runRepository) Update(ctx context.Context, run *models.Run) error {
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	model, err := FromRun(run)
	if err != nil {
		return fmt.Errorf("failed to convert run to model: %w", err)
	}
	model.ID = runID

	if err := r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", runID).Updates(model).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// UpdateStatus performs the optimistic-lock CAS write that backs
// ReconcileRun's status transitions (spec §4.5), mirroring the reference's
// dagRunRepository.UpdateState pattern but without an external state
// manager call: the caller (ReconcileRun) has already decided the
// transition is legal.
func (r *runRepository) UpdateStatus(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int) error {
	return r.updateStatus(ctx, id, oldStatus, newStatus, version, nil, nil)
}

// UpdateStatusWithTimeline is UpdateStatus plus explicit backfill values for
// startedAt/completedAt, used when §4.5's backfill rule computes a
// timestamp other than "now" (e.g. the earliest task's startedAt).
func (r *runRepository) UpdateStatusWithTimeline(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error {
	return r.updateStatus(ctx, id, oldStatus, newStatus, version, startedAt, completedAt)
}

func (r *runRepository) updateStatus(ctx context.Context, id string, oldStatus, newStatus models.RunStatus, version int, startedAt, completedAt *time.Time) error {
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	updates := map[string]interface{}{
		"status":  string(newStatus),
		"version": gorm.Expr("version + 1"),
	}
	if startedAt != nil {
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", *startedAt)
	} else if newStatus == models.RunRunning {
		updates["started_at"] = gorm.Expr("COALESCE(started_at, now())")
	}
	if completedAt != nil {
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", *completedAt)
	} else if newStatus.IsTerminal() {
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, now())")
	}

	result := r.db.WithContext(ctx).
		Model(&RunModel{}).
		Where("id = ? AND status = ? AND version = ?", runID, string(oldStatus), version).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// AppendTaskRecord atomically appends a TaskRecord to the run's JSONB
// taskRecords array and bumps version, guarded by the same CAS check so a
// worker racing another worker's completion of a different node never
// clobbers the other's append (spec §4.4's "ordered append list").
func (r *runRepository) AppendTaskRecord(ctx context.Context, id string, record models.TaskRecord, version int) error {
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE runs SET task_records = task_records || ?::jsonb, version = version + 1
		 WHERE id = ? AND version = ?`,
		string(recordJSON), runID, version,
	)
	if result.Error != nil {
		return fmt.Errorf("failed to append task record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (r *runRepository) Delete(ctx context.Context, id string) error {
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	if err := r.db.WithContext(ctx).Delete(&RunModel{}, "id = ?", runID).Error; err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func (r *runRepository) GetLatestRun(ctx context.Context, dagID string) (*models.Run, error) {
	dagUUID, err := uuid.Parse(dagID)
	if err != nil {
		return nil, fmt.Errorf("invalid DAG ID: %w", err)
	}

	var model RunModel
	if err := r.db.WithContext(ctx).
		Where("dag_id = ?", dagUUID).
		Order("queued_at DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("no runs found for DAG: %s", dagID)
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return model.ToRun()
}
