// Package workerhealth implements C10: every ten seconds it marks workers
// offline whose heartbeat is older than the timeout — three missed 5s
// heartbeats by default (spec §4.9).
package workerhealth

import (
	"context"
	"log"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
)

const (
	sweepInterval         = 10 * time.Second
	defaultHeartbeatTimeout = 15 * time.Second
)

// Monitor is the C10 contract implementation.
type Monitor struct {
	workers storage.WorkerRepository
	timeout time.Duration
}

// New creates a Monitor. A zero timeout uses the 15s default.
func New(workers storage.WorkerRepository, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = defaultHeartbeatTimeout
	}
	return &Monitor{workers: workers, timeout: timeout}
}

// Run sweeps every ten seconds until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	m.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.timeout)
	stale, err := m.workers.ListStale(ctx, cutoff)
	if err != nil {
		log.Printf("workerhealth: failed to list stale workers: %v", err)
		return
	}
	for _, w := range stale {
		if err := m.workers.MarkOffline(ctx, w.WorkerID); err != nil {
			log.Printf("workerhealth: failed to mark worker %s offline: %v", w.WorkerID, err)
		}
	}
}
