// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package status

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

func TestRunLifecycle(t *testing.T) {
	tr := NewTracker()

	id := tr.CreateRun(context.Background(), "hourly")
	if id == "" {
		t.Fatal("empty run id")
	}

	run, ok := tr.GetRun(id)
	if !ok {
		t.Fatal("run not found after create")
	}
	if run.State != models.SyncRunPending {
		t.Errorf("state %q, want pending", run.State)
	}

	tr.StartRun(id)
	tr.UpdateProgress(id, "processing events", 50, 200)

	run, _ = tr.GetRun(id)
	if run.State != models.SyncRunInProgress {
		t.Errorf("state %q, want in_progress", run.State)
	}
	if run.StartedAt == nil {
		t.Error("StartedAt not set")
	}
	if run.Progress.CompletedSteps != 50 || run.Progress.TotalSteps != 200 {
		t.Errorf("progress %+v", run.Progress)
	}
	if run.Progress.CurrentStep != "processing events" {
		t.Errorf("current step %q", run.Progress.CurrentStep)
	}

	result := &models.SyncResult{Success: true, EventsProcessed: 200, EventsCreated: 3}
	tr.CompleteRun(id, result)

	run, _ = tr.GetRun(id)
	if run.State != models.SyncRunCompleted {
		t.Errorf("state %q, want completed", run.State)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if run.Result == nil || run.Result.EventsCreated != 3 {
		t.Errorf("result %+v", run.Result)
	}
	if run.Progress.CompletedSteps != 200 {
		t.Errorf("completion should fill progress, got %d", run.Progress.CompletedSteps)
	}
}

func TestFailRun(t *testing.T) {
	tr := NewTracker()

	id := tr.CreateRun(context.Background(), "daily")
	tr.StartRun(id)
	tr.FailRun(id, &models.SyncResult{Errors: []string{"fetch failed"}}, "fetch failed")

	run, _ := tr.GetRun(id)
	if run.State != models.SyncRunFailed {
		t.Errorf("state %q, want failed", run.State)
	}
	if run.Error != "fetch failed" {
		t.Errorf("error %q", run.Error)
	}
}

func TestUnknownRunIDsAreIgnored(t *testing.T) {
	tr := NewTracker()
	tr.StartRun("nope")
	tr.UpdateProgress("nope", "x", 1, 2)
	tr.CompleteRun("nope", nil)
	tr.FailRun("nope", nil, "x")

	if _, ok := tr.GetRun("nope"); ok {
		t.Fatal("unknown id should not materialize a run")
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	tr := NewTracker()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, tr.CreateRun(context.Background(), fmt.Sprintf("type-%d", i)))
	}

	recent := tr.RecentRuns("", 3)
	if len(recent) != 3 {
		t.Fatalf("got %d runs, want 3", len(recent))
	}
	if recent[0].ID != ids[4] || recent[2].ID != ids[2] {
		t.Errorf("order wrong: %s, %s, %s", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestCreateRunCapturesRequestID(t *testing.T) {
	tr := NewTracker()

	ctx := WithRequestID(context.Background(), "req-42")
	id := tr.CreateRun(ctx, "range")

	run, _ := tr.GetRun(id)
	if run.RequestID != "req-42" {
		t.Errorf("request id %q, want req-42", run.RequestID)
	}

	plain := tr.CreateRun(context.Background(), "range")
	run, _ = tr.GetRun(plain)
	if run.RequestID != "" {
		t.Errorf("request id %q, want empty", run.RequestID)
	}
}

func TestRecentRunsTypeFilter(t *testing.T) {
	tr := NewTracker()
	tr.CreateRun(context.Background(), "hourly")
	tr.CreateRun(context.Background(), "daily")
	tr.CreateRun(context.Background(), "hourly")

	hourly := tr.RecentRuns("hourly", 10)
	if len(hourly) != 2 {
		t.Fatalf("hourly runs %d, want 2", len(hourly))
	}
	for _, run := range hourly {
		if run.Type != "hourly" {
			t.Errorf("run type %q", run.Type)
		}
	}
}

func TestActiveRuns(t *testing.T) {
	tr := NewTracker()

	done := tr.CreateRun(context.Background(), "hourly")
	tr.StartRun(done)
	tr.CompleteRun(done, &models.SyncResult{Success: true})

	active := tr.CreateRun(context.Background(), "daily")
	tr.StartRun(active)
	pending := tr.CreateRun(context.Background(), "season")

	runs := tr.ActiveRuns()
	if len(runs) != 2 {
		t.Fatalf("got %d active runs, want 2", len(runs))
	}
	if runs[0].ID != active || runs[1].ID != pending {
		t.Errorf("active runs %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestHistoryEvictionKeepsActiveRuns(t *testing.T) {
	tr := NewTrackerWithCapacity(3)

	stillRunning := tr.CreateRun(context.Background(), "season")
	tr.StartRun(stillRunning)

	var finished []string
	for i := 0; i < 5; i++ {
		id := tr.CreateRun(context.Background(), "hourly")
		tr.StartRun(id)
		tr.CompleteRun(id, &models.SyncResult{Success: true})
		finished = append(finished, id)
	}

	if _, ok := tr.GetRun(stillRunning); !ok {
		t.Error("active run must not be evicted")
	}
	if _, ok := tr.GetRun(finished[0]); ok {
		t.Error("oldest finished run should be evicted")
	}
	if _, ok := tr.GetRun(finished[len(finished)-1]); !ok {
		t.Error("newest finished run should be retained")
	}
}

func TestStatistics(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	current := base
	tr.now = func() time.Time { return current }

	// an old run outside the window
	old := tr.CreateRun(context.Background(), "hourly")
	tr.StartRun(old)
	tr.CompleteRun(old, &models.SyncResult{Success: true})

	current = base.AddDate(0, 0, 10)
	for i := 0; i < 3; i++ {
		id := tr.CreateRun(context.Background(), "hourly")
		tr.StartRun(id)
		current = current.Add(100 * time.Millisecond)
		tr.CompleteRun(id, &models.SyncResult{Success: true})
	}
	failed := tr.CreateRun(context.Background(), "daily")
	tr.StartRun(failed)
	current = current.Add(300 * time.Millisecond)
	tr.FailRun(failed, nil, "boom")

	stats := tr.Statistics(7)
	if stats.TotalRuns != 4 {
		t.Errorf("total %d, want 4 (old run excluded)", stats.TotalRuns)
	}
	if stats.SuccessfulRuns != 3 || stats.FailedRuns != 1 {
		t.Errorf("success=%d failed=%d", stats.SuccessfulRuns, stats.FailedRuns)
	}
	if stats.RunsByType["hourly"] != 3 || stats.RunsByType["daily"] != 1 {
		t.Errorf("by type %+v", stats.RunsByType)
	}
	// 3 runs of 100ms and 1 of 300ms average to 150ms
	if stats.AverageDurationMilli != 150 {
		t.Errorf("average duration %d, want 150", stats.AverageDurationMilli)
	}
	if stats.WindowDays != 7 {
		t.Errorf("window %d", stats.WindowDays)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tr.CreateRun(context.Background(), "hourly")
			tr.StartRun(id)
			tr.UpdateProgress(id, "x", 1, 2)
			tr.CompleteRun(id, &models.SyncResult{Success: true})
			tr.RecentRuns("", 10)
			tr.ActiveRuns()
			tr.Statistics(1)
		}()
	}
	wg.Wait()

	if got := len(tr.RecentRuns("", 100)); got != 20 {
		t.Errorf("got %d runs, want 20", got)
	}
}
