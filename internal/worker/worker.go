// Package worker implements C5: it pops one task message at a time,
// dispatches it to the matching C4 executor, and records the outcome
// against the owning run — retrying, dead-lettering, or handing the run
// to the reconciler as the outcome demands (spec §4.3).
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/eventbus"
	"github.com/harshitdeora/task-schedular-sub000/internal/executor"
	"github.com/harshitdeora/task-schedular-sub000/internal/queue"
	"github.com/harshitdeora/task-schedular-sub000/internal/retry"
	"github.com/harshitdeora/task-schedular-sub000/internal/state"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const (
	heartbeatInterval = 5 * time.Second
	defaultTimeout    = 30 * time.Second
)

// Worker is the C5 contract implementation: one instance corresponds to
// one OS process/goroutine pool consuming from the shared task queue, the
// way the reference's distributed Worker consumed a NATS queue group,
// but dispatching through the per-kind executor registry instead of a
// single task-type map and persisting through the jsonb Run model instead
// of separate TaskInstance rows.
type Worker struct {
	id       string
	hostname string

	queue      queue.Queue
	registry   *executor.Registry
	dags       storage.DAGRepository
	runs       storage.RunRepository
	workers    storage.WorkerRepository
	dispatcher *dispatcher.Dispatcher
	reconciler *state.Reconciler
	bus        eventbus.EventBus

	mu              sync.Mutex
	tasksInProgress int
	shuttingDown    bool
	wg              sync.WaitGroup
}

// New creates a Worker instance.
func New(
	q queue.Queue,
	registry *executor.Registry,
	dags storage.DAGRepository,
	runs storage.RunRepository,
	workers storage.WorkerRepository,
	disp *dispatcher.Dispatcher,
	reconciler *state.Reconciler,
	bus eventbus.EventBus,
) *Worker {
	hostname, _ := os.Hostname()
	return &Worker{
		id:         fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		hostname:   hostname,
		queue:      q,
		registry:   registry,
		dags:       dags,
		runs:       runs,
		workers:    workers,
		dispatcher: disp,
		reconciler: reconciler,
		bus:        bus,
	}
}

// Run starts the heartbeat loop and the queue consume loop, blocking
// until ctx is cancelled. On cancellation it reports status=draining on a
// final heartbeat and returns once the heartbeat loop has stopped; it does
// not wait for handlers still running in the queue transport's goroutines.
func (w *Worker) Run(ctx context.Context) error {
	w.wg.Add(1)
	go w.heartbeatLoop(ctx)

	err := w.queue.Subscribe(ctx, w.handle)
	if err == nil {
		<-ctx.Done()
	}

	w.mu.Lock()
	w.shuttingDown = true
	w.mu.Unlock()
	w.emitHeartbeat(context.Background())

	w.wg.Wait()
	return err
}

// handle implements the per-message state machine (spec §4.3 steps 1-8).
func (w *Worker) handle(ctx context.Context, msg models.TaskMessage) error {
	if !msg.Valid() {
		payload, _ := json.Marshal(msg)
		return w.queue.MoveToDeadLetter(ctx, payload, "invalid_json")
	}

	w.mu.Lock()
	w.tasksInProgress++
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.tasksInProgress--
		w.mu.Unlock()
	}()

	run, err := w.runs.Get(ctx, msg.RunID)
	if err != nil {
		// Missing run: drop silently rather than dead-lettering — the
		// run itself is gone, there is nothing left to reconcile.
		log.Printf("worker %s: dropping message for missing run %s: %v", w.id, msg.RunID, err)
		return nil
	}

	def, err := w.dags.Get(ctx, msg.DAGID)
	if err != nil {
		payload, _ := json.Marshal(msg)
		return w.queue.MoveToDeadLetter(ctx, payload, "dag_deleted")
	}

	node := def.NodeByID(msg.NodeID)
	if node == nil {
		payload, _ := json.Marshal(msg)
		return w.queue.MoveToDeadLetter(ctx, payload, "dag_deleted")
	}

	now := time.Now().UTC()
	record := models.TaskRecord{
		NodeID:      msg.NodeID,
		DisplayName: node.DisplayName,
		Status:      models.TaskRunning,
		Attempts:    msg.Attempt,
		StartedAt:   now,
	}
	if err := w.runs.AppendTaskRecord(ctx, run.ID, record, run.Version); err != nil {
		return fmt.Errorf("worker: append running record: %w", err)
	}
	if err := w.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		log.Printf("worker %s: reconcile after running record failed: %v", w.id, err)
	}
	w.emitTaskUpdate(msg, node, models.TaskRunning, nil, "")

	run, err = w.runs.Get(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("worker: reload run: %w", err)
	}

	priorOutput := priorNodeOutput(run, def, node)
	exec, execErr := w.registry.For(node.Kind)
	if execErr != nil {
		return w.fail(ctx, run, def, node, msg, errs.New(errs.KindConfigMissing, execErr.Error(), execErr))
	}

	timeout := defaultTimeout
	if ms, ok := node.Config["timeoutMs"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, execErr := exec.Execute(taskCtx, node.Config, executor.RunContext{
		RunID:       run.ID,
		NodeID:      node.ID,
		DisplayName: node.DisplayName,
		UserID:      msg.UserID,
		PriorOutput: priorOutput,
	})
	if execErr != nil {
		return w.fail(ctx, run, def, node, msg, execErr)
	}

	switch result.Outcome {
	case executor.OutcomeScheduled:
		return w.markScheduled(ctx, run, node, result)
	default:
		return w.succeed(ctx, run, def, node, result)
	}
}

func (w *Worker) succeed(ctx context.Context, run *models.Run, def *models.DAG, node *models.Node, result *executor.TaskResult) error {
	completedAt := time.Now().UTC()
	updated := *run
	rec := updated.RecordByNodeID(node.ID)
	if rec == nil {
		return fmt.Errorf("worker: no running record found for node %s", node.ID)
	}
	rec.Status = models.TaskSuccess
	rec.CompletedAt = &completedAt
	rec.Output = result.Output

	if err := w.runs.Update(ctx, &updated); err != nil {
		return fmt.Errorf("worker: persist success: %w", err)
	}

	if err := w.dispatcher.EnqueueDependents(ctx, &updated, node.ID, def); err != nil {
		return fmt.Errorf("worker: enqueue dependents: %w", err)
	}
	if err := w.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		log.Printf("worker %s: reconcile after success failed: %v", w.id, err)
	}
	w.emitTaskUpdate(models.TaskMessage{RunID: run.ID, NodeID: node.ID}, node, models.TaskSuccess, result.Output, "")
	return nil
}

func (w *Worker) markScheduled(ctx context.Context, run *models.Run, node *models.Node, result *executor.TaskResult) error {
	updated := *run
	rec := updated.RecordByNodeID(node.ID)
	if rec == nil {
		return fmt.Errorf("worker: no running record found for node %s", node.ID)
	}
	rec.Status = models.TaskScheduled
	rec.Output = result.Output

	if err := w.runs.Update(ctx, &updated); err != nil {
		return fmt.Errorf("worker: persist scheduled: %w", err)
	}
	if err := w.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		log.Printf("worker %s: reconcile after scheduled failed: %v", w.id, err)
	}
	w.emitTaskUpdate(models.TaskMessage{RunID: run.ID, NodeID: node.ID}, node, models.TaskScheduled, result.Output, "")
	return nil
}

// fail resolves the effective retry policy (DAG-level wins over
// node-level, both defaulting to {3, 2s}) and either schedules a retry or
// dead-letters with "max_retries_exceeded:<cause>" (spec §4.3).
func (w *Worker) fail(ctx context.Context, run *models.Run, def *models.DAG, node *models.Node, msg models.TaskMessage, cause error) error {
	policy := def.EffectiveRetryPolicy(node)
	completedAt := time.Now().UTC()

	updated := *run
	rec := updated.RecordByNodeID(node.ID)
	if rec == nil {
		return fmt.Errorf("worker: no running record found for node %s", node.ID)
	}

	retryCfg := retry.NewConfig(policy.MaxAttempts, retry.StrategyFor(policy.Strategy, policy.Backoff))
	if retryCfg.ShouldRetry(msg.Attempt) {
		rec.Status = models.TaskRetrying
		rec.Error = cause.Error()
		if err := w.runs.Update(ctx, &updated); err != nil {
			return fmt.Errorf("worker: persist retrying: %w", err)
		}
		w.emitTaskUpdate(msg, node, models.TaskRetrying, nil, cause.Error())

		delay := retryCfg.CalculateNextDelay(msg.Attempt)
		nodeID, workerID := node.ID, w.id
		go func() {
			time.Sleep(delay)
			retryMsg := models.TaskMessage{RunID: msg.RunID, DAGID: msg.DAGID, NodeID: msg.NodeID, Attempt: msg.Attempt + 1, UserID: msg.UserID}

			// The re-enqueue itself can fail transiently (NATS momentarily
			// unreachable); losing it here would silently drop the retry
			// the rest of this function just promised the run record.
			pushCfg := retry.NewConfig(3, retry.NewFixedDelay(500*time.Millisecond, false)).
				WithGiveUpCallback(func(err error) {
					log.Printf("worker %s: giving up re-enqueueing retry for node %s: %v", workerID, nodeID, err)
				})
			if err := retry.NewExecutor(pushCfg).Execute(context.Background(), func() error {
				return w.queue.Push(context.Background(), retryMsg)
			}); err != nil {
				log.Printf("worker %s: failed to re-enqueue retry for node %s: %v", workerID, nodeID, err)
			}
		}()
		return nil
	}

	rec.Status = models.TaskFailed
	rec.CompletedAt = &completedAt
	rec.Error = cause.Error()
	if err := w.runs.Update(ctx, &updated); err != nil {
		return fmt.Errorf("worker: persist failed: %w", err)
	}
	if err := w.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		log.Printf("worker %s: reconcile after failure failed: %v", w.id, err)
	}
	w.emitTaskUpdate(msg, node, models.TaskFailed, nil, cause.Error())

	payload, _ := json.Marshal(msg)
	return w.queue.MoveToDeadLetter(ctx, payload, fmt.Sprintf("max_retries_exceeded:%s", errs.KindOf(cause)))
}

func (w *Worker) emitTaskUpdate(msg models.TaskMessage, node *models.Node, status models.TaskStatus, output map[string]interface{}, errMsg string) {
	if w.bus == nil {
		return
	}
	_ = w.bus.PublishTaskUpdate(eventbus.TaskUpdate{
		RunID:       msg.RunID,
		NodeID:      node.ID,
		Status:      string(status),
		Attempt:     msg.Attempt,
		DisplayName: node.DisplayName,
		Timestamp:   time.Now().UTC(),
		Output:      output,
		Error:       errMsg,
	})
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.emitHeartbeat(ctx)
		}
	}
}

func (w *Worker) emitHeartbeat(ctx context.Context) {
	w.mu.Lock()
	inProgress := w.tasksInProgress
	draining := w.shuttingDown
	w.mu.Unlock()

	status := models.WorkerIdle
	if draining {
		status = models.WorkerDraining
	} else if inProgress > 0 {
		status = models.WorkerBusy
	}

	var cpuLoad, memoryMB float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuLoad = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memoryMB = float64(vm.Used) / (1024 * 1024)
	}

	hb := &models.Worker{
		WorkerID:        w.id,
		Status:          status,
		LastHeartbeat:   time.Now().UTC(),
		CPULoad:         cpuLoad,
		MemoryMB:        memoryMB,
		TasksInProgress: inProgress,
	}
	if err := w.workers.Upsert(ctx, hb); err != nil {
		log.Printf("worker %s: heartbeat upsert failed: %v", w.id, err)
	}
}

// priorNodeOutput resolves the single immediate predecessor's output for
// script/transform input injection (spec §4.2). A node with multiple
// predecessors has no single "prior" output; the executor sees nil.
func priorNodeOutput(run *models.Run, def *models.DAG, node *models.Node) map[string]interface{} {
	var deps []string
	for _, e := range def.Graph.Edges {
		if e.Target == node.ID {
			deps = append(deps, e.Source)
		}
	}
	if len(deps) != 1 {
		return nil
	}
	rec := run.RecordByNodeID(deps[0])
	if rec == nil {
		return nil
	}
	return rec.Output
}
