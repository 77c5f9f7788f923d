package storage

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// JSONB is a custom type for JSONB columns, reused for the graph, task
// records, and node config columns.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// JSONSlice is a custom type for JSONB-array columns (graph nodes/edges,
// taskRecords).
type JSONSlice []byte

func (s JSONSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return string(s), nil
}

func (s *JSONSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []byte("[]")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = append([]byte(nil), v...)
		return nil
	case string:
		*s = []byte(v)
		return nil
	default:
		return errors.New("type assertion to []byte or string failed")
	}
}

// DAGModel is the database model for a DAG (spec §3).
type DAGModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Owner       string    `gorm:"type:varchar(255);index:idx_dags_owner"`
	Name        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_dags_owner_name"`
	Description string    `gorm:"type:text"`
	GraphJSON   JSONSlice `gorm:"column:graph;type:jsonb;not null;default:'{}'"`
	ScheduleJSON JSONSlice `gorm:"column:schedule;type:jsonb;not null;default:'{}'"`
	RetryPolicyJSON JSONSlice `gorm:"column:retry_policy;type:jsonb;not null;default:'{}'"`
	Active      bool      `gorm:"default:true;index:idx_dags_active"`

	TriggerToken   string `gorm:"column:trigger_token;type:varchar(255);uniqueIndex:idx_dags_trigger_token"`
	TriggerPath    string `gorm:"column:trigger_path;type:varchar(255);uniqueIndex:idx_dags_trigger_path"`
	TriggerEnabled bool   `gorm:"column:trigger_enabled;default:false"`

	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DAGModel) TableName() string { return "dags" }

// ToDAG converts a DAGModel back to models.DAG.
func (d *DAGModel) ToDAG() (*models.DAG, error) {
	out := &models.DAG{
		ID:             d.ID.String(),
		Owner:          d.Owner,
		Name:           d.Name,
		Description:    d.Description,
		Active:         d.Active,
		TriggerToken:   d.TriggerToken,
		TriggerPath:    d.TriggerPath,
		TriggerEnabled: d.TriggerEnabled,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if len(d.GraphJSON) > 0 {
		if err := json.Unmarshal(d.GraphJSON, &out.Graph); err != nil {
			return nil, err
		}
	}
	if len(d.ScheduleJSON) > 0 {
		if err := json.Unmarshal(d.ScheduleJSON, &out.Schedule); err != nil {
			return nil, err
		}
	}
	if len(d.RetryPolicyJSON) > 0 {
		if err := json.Unmarshal(d.RetryPolicyJSON, &out.RetryPolicy); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromDAG converts a models.DAG to a DAGModel.
func FromDAG(d *models.DAG) (*DAGModel, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		id = uuid.New()
	}

	graphJSON, err := json.Marshal(d.Graph)
	if err != nil {
		return nil, err
	}
	scheduleJSON, err := json.Marshal(d.Schedule)
	if err != nil {
		return nil, err
	}
	retryJSON, err := json.Marshal(d.RetryPolicy)
	if err != nil {
		return nil, err
	}

	return &DAGModel{
		ID:              id,
		Owner:           d.Owner,
		Name:            d.Name,
		Description:     d.Description,
		GraphJSON:       graphJSON,
		ScheduleJSON:    scheduleJSON,
		RetryPolicyJSON: retryJSON,
		Active:          d.Active,
		TriggerToken:    d.TriggerToken,
		TriggerPath:     d.TriggerPath,
		TriggerEnabled:  d.TriggerEnabled,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// RunModel is the database model for a Run (spec §3).
type RunModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	DAGID           uuid.UUID `gorm:"type:uuid;not null;index:idx_runs_dag_id"`
	Owner           string    `gorm:"type:varchar(255);index:idx_runs_owner"`
	Status          string    `gorm:"type:varchar(50);not null;default:'queued';index:idx_runs_status"`
	TriggeredBy     string    `gorm:"type:varchar(255)"`
	QueuedAt        time.Time `gorm:"not null;index:idx_runs_queued_at"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	TaskRecordsJSON JSONSlice `gorm:"column:task_records;type:jsonb;not null;default:'[]'"`
	Version         int       `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RunModel) TableName() string { return "runs" }

// ToRun converts a RunModel back to models.Run.
func (r *RunModel) ToRun() (*models.Run, error) {
	out := &models.Run{
		ID:          r.ID.String(),
		DAGID:       r.DAGID.String(),
		Owner:       r.Owner,
		Status:      models.RunStatus(r.Status),
		TriggeredBy: r.TriggeredBy,
		Version:     r.Version,
		Timeline: models.Timeline{
			QueuedAt:    r.QueuedAt,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		},
	}
	if len(r.TaskRecordsJSON) > 0 {
		if err := json.Unmarshal(r.TaskRecordsJSON, &out.TaskRecords); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromRun converts a models.Run to a RunModel.
func FromRun(r *models.Run) (*RunModel, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.New()
	}
	dagID, err := uuid.Parse(r.DAGID)
	if err != nil {
		return nil, err
	}
	recordsJSON, err := json.Marshal(r.TaskRecords)
	if err != nil {
		return nil, err
	}

	return &RunModel{
		ID:              id,
		DAGID:           dagID,
		Owner:           r.Owner,
		Status:          string(r.Status),
		TriggeredBy:     r.TriggeredBy,
		QueuedAt:        r.Timeline.QueuedAt,
		StartedAt:       r.Timeline.StartedAt,
		CompletedAt:     r.Timeline.CompletedAt,
		TaskRecordsJSON: recordsJSON,
		Version:         r.Version,
	}, nil
}

// WorkerModel is the database model for a Worker heartbeat (spec §3).
type WorkerModel struct {
	WorkerID        string    `gorm:"type:varchar(255);primary_key"`
	Status          string    `gorm:"type:varchar(50);not null;index:idx_workers_status"`
	LastHeartbeat   time.Time `gorm:"not null;index:idx_workers_last_heartbeat"`
	StartedAt       time.Time `gorm:"not null"`
	CPULoad         float64
	MemoryMB        float64
	TasksInProgress int
	TasksCompleted  int64
	TasksFailed     int64
}

func (WorkerModel) TableName() string { return "workers" }

func (w *WorkerModel) ToWorker() *models.Worker {
	return &models.Worker{
		WorkerID:        w.WorkerID,
		Status:          models.WorkerStatus(w.Status),
		LastHeartbeat:   w.LastHeartbeat,
		StartedAt:       w.StartedAt,
		CPULoad:         w.CPULoad,
		MemoryMB:        w.MemoryMB,
		TasksInProgress: w.TasksInProgress,
		TasksCompleted:  w.TasksCompleted,
		TasksFailed:     w.TasksFailed,
	}
}

func FromWorker(w *models.Worker) *WorkerModel {
	return &WorkerModel{
		WorkerID:        w.WorkerID,
		Status:          string(w.Status),
		LastHeartbeat:   w.LastHeartbeat,
		StartedAt:       w.StartedAt,
		CPULoad:         w.CPULoad,
		MemoryMB:        w.MemoryMB,
		TasksInProgress: w.TasksInProgress,
		TasksCompleted:  w.TasksCompleted,
		TasksFailed:     w.TasksFailed,
	}
}

// DeferredEmailModel is the database model for a deferred email row (spec §3).
type DeferredEmailModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	OwningRunID    uuid.UUID `gorm:"type:uuid;not null;index:idx_deferred_emails_run_id"`
	OwningNodeID   string    `gorm:"type:varchar(255);not null"`
	SenderIdentity string    `gorm:"type:varchar(255)"`
	Recipient      string    `gorm:"type:varchar(255);not null"`
	Subject        string    `gorm:"type:text"`
	Body           string    `gorm:"type:text"`
	FireAt         time.Time `gorm:"not null;index:idx_deferred_emails_fire_at"`
	Status         string    `gorm:"type:varchar(50);not null;default:'pending';index:idx_deferred_emails_status"`
	SentAt         *time.Time
	Error          string `gorm:"type:text"`
}

func (DeferredEmailModel) TableName() string { return "deferred_emails" }

func (e *DeferredEmailModel) ToDeferredEmail() *models.DeferredEmail {
	return &models.DeferredEmail{
		ID:             e.ID.String(),
		OwningRunID:    e.OwningRunID.String(),
		OwningNodeID:   e.OwningNodeID,
		SenderIdentity: e.SenderIdentity,
		Recipient:      e.Recipient,
		Subject:        e.Subject,
		Body:           e.Body,
		FireAt:         e.FireAt,
		Status:         models.DeferredEmailStatus(e.Status),
		SentAt:         e.SentAt,
		Error:          e.Error,
	}
}

func FromDeferredEmail(e *models.DeferredEmail) (*DeferredEmailModel, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}
	runID, err := uuid.Parse(e.OwningRunID)
	if err != nil {
		return nil, err
	}
	return &DeferredEmailModel{
		ID:             id,
		OwningRunID:    runID,
		OwningNodeID:   e.OwningNodeID,
		SenderIdentity: e.SenderIdentity,
		Recipient:      e.Recipient,
		Subject:        e.Subject,
		Body:           e.Body,
		FireAt:         e.FireAt,
		Status:         string(e.Status),
		SentAt:         e.SentAt,
		Error:          e.Error,
	}, nil
}
