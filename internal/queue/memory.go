package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// MemoryQueue is an in-process Queue used by tests and local development.
// It never redelivers: a message whose handler returns an error is moved
// to the dead-letter list with reason "handler_error".
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []models.TaskMessage
	deadLetter []deadLetterEntry
	handler    func(context.Context, models.TaskMessage) error
}

type deadLetterEntry struct {
	Payload []byte
	Reason  string
}

// NewMemoryQueue creates a new in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Push appends a message; if a handler is subscribed it is invoked
// synchronously (good enough for deterministic tests).
func (q *MemoryQueue) Push(ctx context.Context, msg models.TaskMessage) error {
	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()

	if handler == nil {
		q.mu.Lock()
		q.pending = append(q.pending, msg)
		q.mu.Unlock()
		return nil
	}

	if err := handler(ctx, msg); err != nil {
		data, _ := json.Marshal(msg)
		return q.MoveToDeadLetter(ctx, data, "handler_error")
	}
	return nil
}

// Subscribe registers handler and immediately drains anything already
// pending.
func (q *MemoryQueue) Subscribe(ctx context.Context, handler func(context.Context, models.TaskMessage) error) error {
	q.mu.Lock()
	q.handler = handler
	backlog := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, msg := range backlog {
		if err := handler(ctx, msg); err != nil {
			data, _ := json.Marshal(msg)
			_ = q.MoveToDeadLetter(ctx, data, "handler_error")
		}
	}
	return nil
}

// MoveToDeadLetter records a dead-lettered payload.
func (q *MemoryQueue) MoveToDeadLetter(ctx context.Context, payload []byte, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetter = append(q.deadLetter, deadLetterEntry{Payload: payload, Reason: reason})
	return nil
}

// DeadLetterCount returns the number of dead-lettered entries (test helper).
func (q *MemoryQueue) DeadLetterCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadLetter)
}

// DeadLetterReasons returns the recorded reasons in order (test helper).
func (q *MemoryQueue) DeadLetterReasons() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.deadLetter))
	for i, e := range q.deadLetter {
		out[i] = e.Reason
	}
	return out
}

// Close is a no-op for the in-memory queue.
func (q *MemoryQueue) Close() error { return nil }
