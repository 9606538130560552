// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package status tracks sync run lifecycles in memory: creation,
// progress, completion, and aggregate statistics over recent history.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

type contextKey struct{}

// WithRequestID returns a context carrying the originating request id,
// recorded on runs created from it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// defaultMaxHistory bounds how many finished runs are retained.
const defaultMaxHistory = 200

// Tracker records sync run statuses. All methods are safe for
// concurrent use. History is bounded; the oldest finished runs are
// evicted first.
type Tracker struct {
	mu         sync.RWMutex
	runs       map[string]*models.SyncRunStatus
	order      []string // run ids in creation order
	maxHistory int

	now func() time.Time
}

// NewTracker creates a Tracker with the default history bound.
func NewTracker() *Tracker {
	return NewTrackerWithCapacity(defaultMaxHistory)
}

// NewTrackerWithCapacity creates a Tracker retaining at most
// maxHistory runs.
func NewTrackerWithCapacity(maxHistory int) *Tracker {
	if maxHistory < 1 {
		maxHistory = defaultMaxHistory
	}
	return &Tracker{
		runs:       make(map[string]*models.SyncRunStatus),
		order:      make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// CreateRun registers a new pending run and returns its id. A request
// id carried by the context (WithRequestID) is recorded on the run.
func (t *Tracker) CreateRun(ctx context.Context, syncType string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.runs[id] = &models.SyncRunStatus{
		ID:        id,
		Type:      syncType,
		RequestID: RequestIDFromContext(ctx),
		State:     models.SyncRunPending,
		CreatedAt: t.now(),
	}
	t.order = append(t.order, id)
	t.evictLocked()
	return id
}

// StartRun marks a run as in progress.
func (t *Tracker) StartRun(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return
	}
	started := t.now()
	run.State = models.SyncRunInProgress
	run.StartedAt = &started
}

// UpdateProgress updates the step counters of an in-progress run.
func (t *Tracker) UpdateProgress(id, step string, completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return
	}
	run.Progress.CurrentStep = step
	run.Progress.CompletedSteps = completed
	run.Progress.TotalSteps = total
}

// CompleteRun marks a run as completed with its result.
func (t *Tracker) CompleteRun(id string, result *models.SyncResult) {
	t.finish(id, models.SyncRunCompleted, result, "")
}

// FailRun marks a run as failed with its (possibly partial) result.
func (t *Tracker) FailRun(id string, result *models.SyncResult, errMsg string) {
	t.finish(id, models.SyncRunFailed, result, errMsg)
}

func (t *Tracker) finish(id string, state models.SyncRunState, result *models.SyncResult, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		logging.Warn().Str("run_id", id).Msg("Finish called for unknown sync run")
		return
	}
	completed := t.now()
	run.State = state
	run.CompletedAt = &completed
	run.Result = result
	run.Error = errMsg
	if run.StartedAt != nil {
		run.DurationMillis = completed.Sub(*run.StartedAt).Milliseconds()
	}
	if result != nil && run.Progress.TotalSteps > 0 {
		run.Progress.CompletedSteps = run.Progress.TotalSteps
	}
}

// GetRun returns a copy of one run's status.
func (t *Tracker) GetRun(id string) (*models.SyncRunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[id]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}

// RecentRuns returns up to limit runs, newest first. An empty
// syncType matches every run.
func (t *Tracker) RecentRuns(syncType string, limit int) []models.SyncRunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.SyncRunStatus, 0, limit)
	for i := len(t.order) - 1; i >= 0 && len(out) < limit; i-- {
		run, ok := t.runs[t.order[i]]
		if !ok || (syncType != "" && run.Type != syncType) {
			continue
		}
		out = append(out, *run)
	}
	return out
}

// ActiveRuns returns the runs that are pending or in progress, oldest
// first.
func (t *Tracker) ActiveRuns() []models.SyncRunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.SyncRunStatus
	for _, id := range t.order {
		run, ok := t.runs[id]
		if !ok {
			continue
		}
		if run.State == models.SyncRunPending || run.State == models.SyncRunInProgress {
			out = append(out, *run)
		}
	}
	return out
}

// Statistics aggregates the finished runs created within the trailing
// window.
func (t *Tracker) Statistics(windowDays int) models.SyncStatistics {
	if windowDays < 1 {
		windowDays = 1
	}
	cutoff := t.now().AddDate(0, 0, -windowDays)

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := models.SyncStatistics{
		WindowDays: windowDays,
		RunsByType: make(map[string]int),
	}
	var totalDuration int64
	var finished int64
	for _, run := range t.runs {
		if run.CreatedAt.Before(cutoff) {
			continue
		}
		stats.TotalRuns++
		stats.RunsByType[run.Type]++
		switch run.State {
		case models.SyncRunCompleted:
			stats.SuccessfulRuns++
			totalDuration += run.DurationMillis
			finished++
		case models.SyncRunFailed:
			stats.FailedRuns++
			totalDuration += run.DurationMillis
			finished++
		}
	}
	if finished > 0 {
		stats.AverageDurationMilli = totalDuration / finished
	}
	return stats
}

// evictLocked drops the oldest finished runs past the history bound.
// Active runs are never evicted even when the bound is exceeded.
func (t *Tracker) evictLocked() {
	if len(t.order) <= t.maxHistory {
		return
	}
	kept := t.order[:0]
	excess := len(t.order) - t.maxHistory
	for _, id := range t.order {
		run := t.runs[id]
		if excess > 0 && run != nil &&
			(run.State == models.SyncRunCompleted || run.State == models.SyncRunFailed) {
			delete(t.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}
