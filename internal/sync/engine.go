// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package sync implements the sync engine: fetch events from a source
// adapter, normalize them, detect changes against the store, and apply
// idempotent upserts. A single-flight guard ensures at most one sync
// runs at a time; a second invocation fails fast with
// ErrSyncInProgress instead of queueing.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/metrics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
	"github.com/bbernstein/chq-calendar-sub000/internal/normalize"
	"github.com/bbernstein/chq-calendar-sub000/internal/season"
	"github.com/bbernstein/chq-calendar-sub000/internal/source/ics"
	"github.com/bbernstein/chq-calendar-sub000/internal/store"
)

// ErrSyncInProgress is returned when a sync is requested while another
// run holds the single-flight guard.
var ErrSyncInProgress = errors.New("sync already in progress")

// Sync type names used in results, metrics, and the status tracker.
const (
	TypeHourly      = "hourly"
	TypeDaily       = "daily"
	TypeIncremental = "incremental"
	TypeSeason      = "season"
	TypeRange       = "range"
	TypeICS         = "ics"
)

// EventFetcher is the API source surface the engine consumes.
type EventFetcher interface {
	GetAllEventsInRange(ctx context.Context, r models.DateRange) ([]models.ApiSourceEvent, error)
	GetSeasonEvents(ctx context.Context, year int, loc *time.Location) ([]models.ApiSourceEvent, error)
	HealthCheck(ctx context.Context) error
	ClearCache()
}

// FeedFetcher is the ICS source surface the engine consumes.
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]models.IcsSourceEvent, error)
	HealthCheck(ctx context.Context) error
}

// StatusRecorder receives run lifecycle notifications. The engine
// tolerates a nil recorder. CreateRun receives the run context so the
// recorder can pick up a request id when the run was triggered over
// HTTP.
type StatusRecorder interface {
	CreateRun(ctx context.Context, syncType string) string
	StartRun(id string)
	UpdateProgress(id, step string, completed, total int)
	CompleteRun(id string, result *models.SyncResult)
	FailRun(id string, result *models.SyncResult, errMsg string)
}

// Engine orchestrates sync runs.
type Engine struct {
	api        EventFetcher
	feed       FeedFetcher // nil when the ICS source is disabled
	store      store.EventStore
	normalizer *normalize.Normalizer
	detector   *ChangeDetector
	status     StatusRecorder
	loc        *time.Location
	cfg        config.SyncConfig

	inProgress atomic.Bool

	// now is the engine clock, replaceable in tests.
	now func() time.Time
}

// NewEngine creates an Engine. feed and status may be nil.
func NewEngine(
	api EventFetcher,
	feed FeedFetcher,
	eventStore store.EventStore,
	normalizer *normalize.Normalizer,
	status StatusRecorder,
	cfg config.SyncConfig,
) *Engine {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = season.DefaultLocation()
	}
	return &Engine{
		api:        api,
		feed:       feed,
		store:      eventStore,
		normalizer: normalizer,
		detector:   NewChangeDetector(),
		status:     status,
		loc:        loc,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SyncHourly syncs the near-term window: today through the configured
// number of days ahead.
func (e *Engine) SyncHourly(ctx context.Context) (*models.SyncResult, error) {
	now := e.now().In(e.loc)
	scope := models.DateRange{Start: now, End: now.AddDate(0, 0, e.cfg.HourlyWindowDays)}
	return e.runAPI(ctx, TypeHourly, scope)
}

// SyncIncremental syncs a window around the current day, looking back
// and ahead by the configured day counts.
func (e *Engine) SyncIncremental(ctx context.Context) (*models.SyncResult, error) {
	now := e.now().In(e.loc)
	scope := models.DateRange{
		Start: now.AddDate(0, 0, -e.cfg.IncrementalLookbackDays),
		End:   now.AddDate(0, 0, e.cfg.IncrementalLookaheadDays),
	}
	return e.runAPI(ctx, TypeIncremental, scope)
}

// SyncSeason syncs the full season for a year. Year zero selects the
// configured override or the current year.
func (e *Engine) SyncSeason(ctx context.Context, year int) (*models.SyncResult, error) {
	year = e.resolveYear(year)
	scope := season.Range(year, e.loc)
	return e.run(ctx, TypeSeason, scope, models.SourceAPI, func(ctx context.Context) ([]models.RawSourceEvent, error) {
		events, err := e.api.GetSeasonEvents(ctx, year, e.loc)
		if err != nil {
			return nil, err
		}
		return wrapAPI(events), nil
	})
}

// SyncDaily is the nightly full refresh: the whole season for the
// given year, or the configured/current season when year is zero.
func (e *Engine) SyncDaily(ctx context.Context, year int) (*models.SyncResult, error) {
	year = e.resolveYear(year)
	scope := season.Range(year, e.loc)
	return e.run(ctx, TypeDaily, scope, models.SourceAPI, func(ctx context.Context) ([]models.RawSourceEvent, error) {
		events, err := e.api.GetSeasonEvents(ctx, year, e.loc)
		if err != nil {
			return nil, err
		}
		return wrapAPI(events), nil
	})
}

// SyncRange syncs an arbitrary caller-provided range.
func (e *Engine) SyncRange(ctx context.Context, r models.DateRange) (*models.SyncResult, error) {
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s",
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
	}
	return e.runAPI(ctx, TypeRange, r)
}

// SyncCustomRange is SyncRange with explicit bounds.
func (e *Engine) SyncCustomRange(ctx context.Context, start, end time.Time) (*models.SyncResult, error) {
	return e.SyncRange(ctx, models.DateRange{Start: start, End: end})
}

// SyncICS ingests the ICS feed. The feed covers the whole published
// calendar, so the scope is the full current season. No cleanup: the
// feed publishes no completeness guarantee, so an absent entry does
// not mean the event is gone.
func (e *Engine) SyncICS(ctx context.Context) (*models.SyncResult, error) {
	if e.feed == nil {
		return nil, errors.New("ics source not configured")
	}
	year := e.resolveYear(0)
	scope := season.Range(year, e.loc)
	return e.run(ctx, TypeICS, scope, "", func(ctx context.Context) ([]models.RawSourceEvent, error) {
		events, err := e.feed.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		raws := make([]models.RawSourceEvent, len(events))
		for i := range events {
			raws[i] = models.FromICS(&events[i])
		}
		return raws, nil
	})
}

// runAPI runs a ranged API fetch with cleanup enabled.
func (e *Engine) runAPI(ctx context.Context, syncType string, scope models.DateRange) (*models.SyncResult, error) {
	return e.run(ctx, syncType, scope, models.SourceAPI, func(ctx context.Context) ([]models.RawSourceEvent, error) {
		events, err := e.api.GetAllEventsInRange(ctx, scope)
		if err != nil {
			return nil, err
		}
		return wrapAPI(events), nil
	})
}

// run is the shared sync pipeline: guard, fetch, upsert each event,
// optionally clean up events that vanished from the scope, and record
// the outcome. A non-empty cleanupSource enables cleanup, scoped to
// events from that source only.
//
// Cleanup only runs when the fetch covered the whole scope and every
// event applied cleanly; a partial run must never delete events it may
// simply have failed to see.
func (e *Engine) run(
	ctx context.Context,
	syncType string,
	scope models.DateRange,
	cleanupSource models.SourceKind,
	fetch func(ctx context.Context) ([]models.RawSourceEvent, error),
) (*models.SyncResult, error) {
	if !e.inProgress.CompareAndSwap(false, true) {
		metrics.ScheduledRunsSkipped.WithLabelValues(syncType).Inc()
		return nil, ErrSyncInProgress
	}
	defer e.inProgress.Store(false)

	metrics.SyncInProgress.Set(1)
	defer metrics.SyncInProgress.Set(0)

	runID := ""
	if e.status != nil {
		runID = e.status.CreateRun(ctx, syncType)
		e.status.StartRun(runID)
	}

	start := e.now()
	result := &models.SyncResult{}
	finish := func() *models.SyncResult {
		result.Success = len(result.Errors) == 0
		result.DurationMillis = e.now().Sub(start).Milliseconds()
		metrics.ObserveSyncRun(syncType, time.Duration(result.DurationMillis)*time.Millisecond,
			result.Success, result.EventsCreated, result.EventsUpdated, result.EventsDeleted, len(result.Errors))
		return result
	}

	logging.Info().
		Str("sync_type", syncType).
		Str("start", scope.Start.Format("2006-01-02")).
		Str("end", scope.End.Format("2006-01-02")).
		Msg("Sync started")

	raws, err := fetch(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch failed: %v", err))
		finish()
		if e.status != nil {
			e.status.FailRun(runID, result, err.Error())
		}
		logging.Error().Err(err).Str("sync_type", syncType).Msg("Sync fetch failed")
		return result, err
	}

	fetched := make(map[string]bool, len(raws))
	for i, raw := range raws {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("canceled: %v", ctx.Err()))
			break
		}

		// processed counts every event that enters the loop, failed
		// or not
		result.EventsProcessed++

		event, err := e.normalizer.Normalize(raw)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		created, updated, err := e.upsert(ctx, raw, event)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", event.ID, err))
			continue
		}

		fetched[event.ID] = true
		if created {
			result.EventsCreated++
		} else if updated {
			result.EventsUpdated++
		}

		if e.status != nil && (i+1)%100 == 0 {
			e.status.UpdateProgress(runID, "processing events", i+1, len(raws))
		}
	}

	if cleanupSource != "" && len(result.Errors) == 0 {
		deleted, err := e.CleanupRemoved(ctx, scope, cleanupSource, fetched)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cleanup: %v", err))
		}
		result.EventsDeleted = deleted
	}

	finish()
	if e.status != nil {
		if result.Success {
			e.status.CompleteRun(runID, result)
		} else {
			e.status.FailRun(runID, result, fmt.Sprintf("%d errors", len(result.Errors)))
		}
	}

	if n, err := e.store.Count(ctx); err == nil {
		metrics.StoredEvents.Set(float64(n))
	}

	logging.Info().
		Str("sync_type", syncType).
		Bool("success", result.Success).
		Int("processed", result.EventsProcessed).
		Int("created", result.EventsCreated).
		Int("updated", result.EventsUpdated).
		Int("deleted", result.EventsDeleted).
		Int("errors", len(result.Errors)).
		Int64("duration_ms", result.DurationMillis).
		Msg("Sync finished")

	return result, nil
}

// upsert writes one normalized event through change detection.
// Unchanged events are skipped entirely, which is what makes repeated
// syncs idempotent.
func (e *Engine) upsert(ctx context.Context, raw models.RawSourceEvent, event *models.CanonicalEvent) (created, updated bool, err error) {
	now := e.now()

	existing, err := e.store.Get(ctx, event.ID)
	if errors.Is(err, store.ErrNotFound) {
		event.CreatedAt = now
		if event.LastModified.IsZero() {
			event.LastModified = now
		}
		if err := e.store.Put(ctx, event); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	changes := e.detector.Detect(existing, event, now)
	forceICS := raw.Kind == models.SourceICS && ics.NeedsUpdate(existing.LastModified, raw.ICS)
	if len(changes) == 0 && !forceICS {
		return false, false, nil
	}

	// preserve identity bookkeeping, append to the change log
	event.CreatedAt = existing.CreatedAt
	event.ChangeLog = append(existing.ChangeLog, changes...)
	if event.LastModified.IsZero() || !event.LastModified.After(existing.LastModified) {
		event.LastModified = now
	}

	if err := e.store.Put(ctx, event); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// CleanupRemoved deletes stored events in scope that the last full
// fetch did not return, meaning the upstream no longer lists them.
// Only events written by the given source are candidates; a fetch
// from one adapter says nothing about the other's events.
func (e *Engine) CleanupRemoved(ctx context.Context, scope models.DateRange, source models.SourceKind, fetched map[string]bool) (int, error) {
	ids, err := e.store.IDsInRange(ctx, scope)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if fetched[id] {
			continue
		}
		existing, err := e.store.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("load %s: %w", id, err)
		}
		if existing.Source != source {
			continue
		}
		if err := e.store.Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("delete %s: %w", id, err)
		}
		deleted++
		logging.Debug().Str("event_id", id).Msg("Removed event no longer upstream")
	}
	return deleted, nil
}

// ClearCache drops the API client's response cache.
func (e *Engine) ClearCache() {
	e.api.ClearCache()
}

// GetHealthStatus probes the configured sources and the store.
func (e *Engine) GetHealthStatus(ctx context.Context) models.HealthStatus {
	details := make(map[string]string)
	healthy := true

	if err := e.api.HealthCheck(ctx); err != nil {
		healthy = false
		details["api"] = err.Error()
	} else {
		details["api"] = "ok"
	}

	if e.feed != nil {
		if err := e.feed.HealthCheck(ctx); err != nil {
			healthy = false
			details["ics"] = err.Error()
		} else {
			details["ics"] = "ok"
		}
	}

	if n, err := e.store.Count(ctx); err != nil {
		healthy = false
		details["store"] = err.Error()
	} else {
		details["store"] = fmt.Sprintf("%d events", n)
	}

	msg := "all sources healthy"
	if !healthy {
		msg = "one or more sources unhealthy"
	}
	return models.HealthStatus{Healthy: healthy, Message: msg, Details: details}
}

// resolveYear applies the year override chain: explicit argument,
// configured override, then the current year.
func (e *Engine) resolveYear(year int) int {
	if year != 0 {
		return year
	}
	if e.cfg.SeasonYear != 0 {
		return e.cfg.SeasonYear
	}
	return e.now().In(e.loc).Year()
}

func wrapAPI(events []models.ApiSourceEvent) []models.RawSourceEvent {
	raws := make([]models.RawSourceEvent, len(events))
	for i := range events {
		raws[i] = models.FromAPI(&events[i])
	}
	return raws
}
