// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package models

import "time"

// SyncResult is the per-run summary produced by every sync invocation.
// It is created fresh per run and never persisted as a mutable object;
// the status tracker appends a copy to its run history.
type SyncResult struct {
	Success         bool     `json:"success"`
	EventsProcessed int      `json:"eventsProcessed"`
	EventsCreated   int      `json:"eventsCreated"`
	EventsUpdated   int      `json:"eventsUpdated"`
	EventsDeleted   int      `json:"eventsDeleted"`
	Errors          []string `json:"errors,omitempty"`
	DurationMillis  int64    `json:"duration"`
}

// SyncRunState is the lifecycle state of a tracked sync run.
type SyncRunState string

const (
	SyncRunPending    SyncRunState = "pending"
	SyncRunInProgress SyncRunState = "in_progress"
	SyncRunCompleted  SyncRunState = "completed"
	SyncRunFailed     SyncRunState = "failed"
)

// SyncProgress reports how far along an in-progress run is.
type SyncProgress struct {
	CurrentStep    string `json:"currentStep,omitempty"`
	TotalSteps     int    `json:"totalSteps"`
	CompletedSteps int    `json:"completedSteps"`
}

// SyncRunStatus is one tracked sync run: pending -> in_progress ->
// completed | failed.
type SyncRunStatus struct {
	ID             string       `json:"id"`
	Type           string       `json:"type"`
	RequestID      string       `json:"requestId,omitempty"`
	State          SyncRunState `json:"state"`
	Progress       SyncProgress `json:"progress"`
	CreatedAt      time.Time    `json:"createdAt"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	DurationMillis int64        `json:"duration,omitempty"`
	Result         *SyncResult  `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// SyncStatistics aggregates tracked runs over a trailing window.
type SyncStatistics struct {
	WindowDays           int            `json:"windowDays"`
	TotalRuns            int            `json:"totalRuns"`
	SuccessfulRuns       int            `json:"successfulRuns"`
	FailedRuns           int            `json:"failedRuns"`
	AverageDurationMilli int64          `json:"averageDuration"`
	RunsByType           map[string]int `json:"runsByType"`
}

// HealthStatus is the adapter/engine health probe result.
type HealthStatus struct {
	Healthy bool              `json:"healthy"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}
