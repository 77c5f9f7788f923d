package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type dagRepository struct {
	db *gorm.DB
}

// NewDAGRepository creates a new DAG repository.
func NewDAGRepository(db *gorm.DB) DAGRepository {
	return &dagRepository{db: db}
}

func (r *dagRepository) Create(ctx context.Context, dag *models.DAG) error {
	model, err := FromDAG(dag)
	if err != nil {
		return fmt.Errorf("failed to convert DAG to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create DAG: %w", err)
	}

	dag.ID = model.ID.String()
	dag.CreatedAt = model.CreatedAt
	dag.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *dagRepository) Get(ctx context.Context, id string) (*models.DAG, error) {
	dagID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid DAG ID: %w", err)
	}

	var model DAGModel
	if err := r.db.WithContext(ctx).Where("id = ?", dagID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("DAG not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get DAG: %w", err)
	}

	return model.ToDAG()
}

func (r *dagRepository) GetByOwnerAndName(ctx context.Context, owner, name string) (*models.DAG, error) {
	var model DAGModel
	if err := r.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("DAG not found: %s/%s", owner, name)
		}
		return nil, fmt.Errorf("failed to get DAG by name: %w", err)
	}

	return model.ToDAG()
}

func (r *dagRepository) List(ctx context.Context, filters DAGFilters) ([]*models.DAG, error) {
	query := r.db.WithContext(ctx).Model(&DAGModel{})

	if filters.Owner != "" {
		query = query.Where("owner = ?", filters.Owner)
	}
	if filters.Active != nil {
		query = query.Where("active = ?", *filters.Active)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var dagModels []DAGModel
	if err := query.Find(&dagModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list DAGs: %w", err)
	}

	dags := make([]*models.DAG, 0, len(dagModels))
	for _, model := range dagModels {
		dag, err := model.ToDAG()
		if err != nil {
			return nil, fmt.Errorf("failed to decode DAG %s: %w", model.ID, err)
		}
		dags = append(dags, dag)
	}
	return dags, nil
}

// GetByTriggerToken resolves the DAG for C11's token-authenticated trigger
// shape (/trigger/:token).
func (r *dagRepository) GetByTriggerToken(ctx context.Context, token string) (*models.DAG, error) {
	var model DAGModel
	if err := r.db.WithContext(ctx).Where("trigger_token = ?", token).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("DAG not found for trigger token")
		}
		return nil, fmt.Errorf("failed to get DAG by trigger token: %w", err)
	}
	return model.ToDAG()
}

// GetByTriggerPath resolves the DAG for C11's path-authenticated trigger
// shape (/trigger/path/*path).
func (r *dagRepository) GetByTriggerPath(ctx context.Context, path string) (*models.DAG, error) {
	var model DAGModel
	if err := r.db.WithContext(ctx).Where("trigger_path = ?", path).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("DAG not found for trigger path")
		}
		return nil, fmt.Errorf("failed to get DAG by trigger path: %w", err)
	}
	return model.ToDAG()
}

// ListSchedulable returns every active DAG whose schedule is not manual,
// for the scheduler's periodic reconciliation pass (spec §4.6).
func (r *dagRepository) ListSchedulable(ctx context.Context) ([]*models.DAG, error) {
	active, err := r.List(ctx, DAGFilters{Active: boolPtr(true)})
	if err != nil {
		return nil, err
	}
	out := make([]*models.DAG, 0, len(active))
	for _, d := range active {
		if d.Schedule.Kind != models.ScheduleManual {
			out = append(out, d)
		}
	}
	return out, nil
}

func boolPtr(b bool) *bool { return &b }

func (r *dagRepository) Update(ctx context.Context, dag *models.DAG) error {
	dagID, err := uuid.Parse(dag.ID)
	if err != nil {
		return fmt.Errorf("invalid DAG ID: %w", err)
	}

	model, err := FromDAG(dag)
	if err != nil {
		return fmt.Errorf("failed to convert DAG to model: %w", err)
	}
	model.ID = dagID
	model.UpdatedAt = time.Now()

	if err := r.db.WithContext(ctx).Model(&DAGModel{}).Where("id = ?", dagID).Updates(model).Error; err != nil {
		return fmt.Errorf("failed to update DAG: %w", err)
	}
	return nil
}

func (r *dagRepository) Delete(ctx context.Context, id string) error {
	dagID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid DAG ID: %w", err)
	}

	if err := r.db.WithContext(ctx).Delete(&DAGModel{}, "id = ?", dagID).Error; err != nil {
		return fmt.Errorf("failed to delete DAG: %w", err)
	}
	return nil
}

// SetActive toggles the DAG's active flag, replacing the reference's
// separate Pause/Unpause methods with a single spec-shaped setter.
func (r *dagRepository) SetActive(ctx context.Context, id string, active bool) error {
	dagID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid DAG ID: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&DAGModel{}).Where("id = ?", dagID).Update("active", active).Error; err != nil {
		return fmt.Errorf("failed to set DAG active flag: %w", err)
	}
	return nil
}
