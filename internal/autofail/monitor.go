// Package autofail implements C9: every ten minutes it force-fails runs
// that have sat in queued/running past an age cutoff, extended when a
// pending DeferredEmail still needs to fire (spec §4.8).
package autofail

import (
	"context"
	"log"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const sweepInterval = 10 * time.Minute

// Monitor is the C9 contract implementation.
type Monitor struct {
	runs            storage.RunRepository
	deferred        storage.DeferredEmailRepository
	maxAgeMinutes   time.Duration
	deferredGrace   time.Duration
}

// New creates a Monitor. maxAge is the default run age cutoff; grace
// extends the cutoff past the latest pending DeferredEmail's fireAt.
func New(runs storage.RunRepository, deferred storage.DeferredEmailRepository, maxAge, grace time.Duration) *Monitor {
	return &Monitor{runs: runs, deferred: deferred, maxAgeMinutes: maxAge, deferredGrace: grace}
}

// Run sweeps every ten minutes until ctx is cancelled.
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
	now := time.Now().UTC()
	cutoffQueuedBefore := now.Add(-m.maxAgeMinutes)

	queued := models.RunQueued
	running := models.RunRunning
	for _, status := range []*models.RunStatus{&queued, &running} {
		stuck, err := m.runs.List(ctx, storage.RunFilters{Status: status, Before: &cutoffQueuedBefore})
		if err != nil {
			log.Printf("autofail: failed to list stuck runs for status %s: %v", *status, err)
			continue
		}
		for _, run := range stuck {
			m.evaluate(ctx, run, now)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context, run *models.Run, now time.Time) {
	effectiveCutoff := run.Timeline.QueuedAt.Add(m.maxAgeMinutes)

	latestFireAt, hasPending := m.latestPendingFireAt(ctx, run.ID)
	if hasPending {
		extended := latestFireAt.Add(m.deferredGrace)
		if extended.After(effectiveCutoff) {
			effectiveCutoff = extended
		}
	}

	if now.Before(effectiveCutoff) {
		return
	}

	for i := range run.TaskRecords {
		if !run.TaskRecords[i].Status.IsTerminal() {
			run.TaskRecords[i].Status = models.TaskFailed
			run.TaskRecords[i].Error = "auto_failed_timeout"
		}
	}
	if err := m.runs.Update(ctx, run); err != nil {
		log.Printf("autofail: failed to persist task records for run %s: %v", run.ID, err)
		return
	}

	completedAt := now
	if err := m.runs.UpdateStatusWithTimeline(ctx, run.ID, run.Status, models.RunFailed, run.Version, nil, &completedAt); err != nil {
		log.Printf("autofail: failed to fail run %s: %v", run.ID, err)
	}
}

// latestPendingFireAt finds the latest fireAt among a run's still-pending
// deferred emails, since the monitor must not fail a run that is merely
// waiting on a legitimately scheduled send.
func (m *Monitor) latestPendingFireAt(ctx context.Context, runID string) (time.Time, bool) {
	due, err := m.deferred.ListDue(ctx, time.Now().UTC().Add(100*365*24*time.Hour))
	if err != nil {
		return time.Time{}, false
	}
	var latest time.Time
	found := false
	for _, e := range due {
		if e.OwningRunID != runID || e.Status != models.DeferredEmailPending {
			continue
		}
		if !found || e.FireAt.After(latest) {
			latest = e.FireAt
			found = true
		}
	}
	return latest, found
}
