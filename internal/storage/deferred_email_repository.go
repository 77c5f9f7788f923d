package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type deferredEmailRepository struct {
	db *gorm.DB
}

// NewDeferredEmailRepository creates a new deferred-email repository. No
// reference equivalent exists; shaped after dagRepository's CRUD pattern
// for the C8 send-once sweep (spec §4.8).
func NewDeferredEmailRepository(db *gorm.DB) DeferredEmailRepository {
	return &deferredEmailRepository{db: db}
}

func (r *deferredEmailRepository) Create(ctx context.Context, email *models.DeferredEmail) error {
	model, err := FromDeferredEmail(email)
	if err != nil {
		return fmt.Errorf("failed to convert deferred email to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create deferred email: %w", err)
	}
	email.ID = model.ID.String()
	return nil
}

func (r *deferredEmailRepository) Get(ctx context.Context, id string) (*models.DeferredEmail, error) {
	emailID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid deferred email ID: %w", err)
	}

	var model DeferredEmailModel
	if err := r.db.WithContext(ctx).Where("id = ?", emailID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("deferred email not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get deferred email: %w", err)
	}
	return model.ToDeferredEmail(), nil
}

// ListDue returns pending deferred emails whose fireAt has passed, for the
// every-minute sweep (spec §4.8).
func (r *deferredEmailRepository) ListDue(ctx context.Context, now time.Time) ([]*models.DeferredEmail, error) {
	var dbModels []DeferredEmailModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND fire_at <= ?", string(models.DeferredEmailPending), now).
		Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list due deferred emails: %w", err)
	}
	out := make([]*models.DeferredEmail, len(dbModels))
	for i := range dbModels {
		out[i] = dbModels[i].ToDeferredEmail()
	}
	return out, nil
}

// MarkSent performs the send-once CAS: it only transitions rows that are
// still pending, so two sweepers racing on the same row send at most once.
func (r *deferredEmailRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	emailID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid deferred email ID: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&DeferredEmailModel{}).
		Where("id = ? AND status = ?", emailID, string(models.DeferredEmailPending)).
		Updates(map[string]interface{}{
			"status":  string(models.DeferredEmailSent),
			"sent_at": sentAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark deferred email sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (r *deferredEmailRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	emailID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid deferred email ID: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&DeferredEmailModel{}).
		Where("id = ? AND status = ?", emailID, string(models.DeferredEmailPending)).
		Updates(map[string]interface{}{
			"status": string(models.DeferredEmailFailed),
			"error":  errMsg,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark deferred email failed: %w", err)
	}
	return nil
}

// CancelByRunID cancels every still-pending deferred email owned by a run.
// Neither the auto-fail monitor nor CancelRun calls it; a force-completed
// run keeps its pending deferred emails.
func (r *deferredEmailRepository) CancelByRunID(ctx context.Context, runID string) error {
	runUUID, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&DeferredEmailModel{}).
		Where("owning_run_id = ? AND status = ?", runUUID, string(models.DeferredEmailPending)).
		Update("status", string(models.DeferredEmailCancelled)).Error; err != nil {
		return fmt.Errorf("failed to cancel deferred emails for run: %w", err)
	}
	return nil
}
