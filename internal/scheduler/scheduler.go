// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package scheduler drives the recurring sync cadences: a nightly full
// season refresh and an hourly near-term window sync. Overlap safety
// lives in the engine's single-flight guard; when a scheduled run is
// refused the scheduler logs and counts it instead of erroring.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/metrics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
	syncengine "github.com/bbernstein/chq-calendar-sub000/internal/sync"
)

// SyncRunner is the engine surface the scheduler drives. The daily
// sync always targets the configured/current season (year zero).
type SyncRunner interface {
	SyncHourly(ctx context.Context) (*models.SyncResult, error)
	SyncDaily(ctx context.Context, year int) (*models.SyncResult, error)
}

// Scheduler owns the cron instance and the startup delay timer. The
// hourly cadence is armed only after the startup delay has elapsed so
// a fresh deploy does not immediately hammer the upstream; the daily
// cadence is armed from the start.
type Scheduler struct {
	runner SyncRunner
	cfg    config.SchedulerConfig
	cron   *cron.Cron

	mu           sync.Mutex
	dailyEntry   cron.EntryID
	hourlyEntry  cron.EntryID
	hourlyArmed  bool
	startupTimer *time.Timer
	started      bool
}

// Status reports the scheduler's armed cadences and next fire times.
type Status struct {
	Running     bool       `json:"running"`
	HourlyArmed bool       `json:"hourlyArmed"`
	NextDaily   *time.Time `json:"nextDaily,omitempty"`
	NextHourly  *time.Time `json:"nextHourly,omitempty"`
}

// New creates a Scheduler. The cron clock runs in loc so specs like
// "0 2 * * *" mean institution-local time.
func New(runner SyncRunner, cfg config.SchedulerConfig, loc *time.Location) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

// Start arms the daily cadence immediately and the hourly cadence
// after the configured startup delay.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	id, err := s.cron.AddFunc(s.cfg.DailySpec, func() {
		s.runScheduled(syncengine.TypeDaily, s.runDaily)
	})
	if err != nil {
		return err
	}
	s.dailyEntry = id

	s.startupTimer = time.AfterFunc(s.cfg.StartupDelay, s.armHourly)

	s.cron.Start()
	s.started = true
	logging.Info().
		Str("daily_spec", s.cfg.DailySpec).
		Str("hourly_spec", s.cfg.HourlySpec).
		Dur("startup_delay", s.cfg.StartupDelay).
		Msg("Scheduler started")
	return nil
}

// armHourly fires the first hourly sync and registers the cadence.
// Runs once, after the startup delay, so the near-term window is
// fresh well before the first cron boundary.
func (s *Scheduler) armHourly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.hourlyArmed {
		return
	}

	id, err := s.cron.AddFunc(s.cfg.HourlySpec, func() {
		s.runScheduled(syncengine.TypeHourly, s.runner.SyncHourly)
	})
	if err != nil {
		logging.Error().Err(err).Str("spec", s.cfg.HourlySpec).Msg("Failed to arm hourly sync")
		return
	}
	s.hourlyEntry = id
	s.hourlyArmed = true
	logging.Info().Str("spec", s.cfg.HourlySpec).Msg("Hourly sync armed")

	go s.runScheduled(syncengine.TypeHourly, s.runner.SyncHourly)
}

// Stop halts the cron loop and waits for any running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	if s.startupTimer != nil {
		s.startupTimer.Stop()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	logging.Info().Msg("Scheduler stopped")
}

// PerformImmediateFullSync triggers a full-season sync outside the
// cron cadence, for startup priming or operator request.
func (s *Scheduler) PerformImmediateFullSync(ctx context.Context) (*models.SyncResult, error) {
	metrics.ScheduledRunsTriggered.WithLabelValues(syncengine.TypeDaily).Inc()
	return s.runner.SyncDaily(ctx, 0)
}

func (s *Scheduler) runDaily(ctx context.Context) (*models.SyncResult, error) {
	return s.runner.SyncDaily(ctx, 0)
}

// Status reports whether the loop runs and when the cadences next
// fire.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.started, HourlyArmed: s.hourlyArmed}
	if !s.started {
		return st
	}
	if next := s.cron.Entry(s.dailyEntry).Next; !next.IsZero() {
		st.NextDaily = &next
	}
	if s.hourlyArmed {
		if next := s.cron.Entry(s.hourlyEntry).Next; !next.IsZero() {
			st.NextHourly = &next
		}
	}
	return st
}

// runScheduled executes one cadence fire. A sync already in progress
// is an expected overlap, counted and logged at info.
func (s *Scheduler) runScheduled(syncType string, run func(ctx context.Context) (*models.SyncResult, error)) {
	metrics.ScheduledRunsTriggered.WithLabelValues(syncType).Inc()
	result, err := run(context.Background())
	if errors.Is(err, syncengine.ErrSyncInProgress) {
		logging.Info().Str("sync_type", syncType).Msg("Scheduled sync skipped, another sync in progress")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("sync_type", syncType).Msg("Scheduled sync failed")
		return
	}
	if result != nil && !result.Success {
		logging.Warn().
			Str("sync_type", syncType).
			Int("errors", len(result.Errors)).
			Msg("Scheduled sync finished with errors")
	}
}
