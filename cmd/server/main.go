// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package main is the entry point for the CHQ Calendar sync server.
//
// The server aggregates institution events from the upstream JSON REST
// API and the published ICS feed into a canonical event store, keeping
// it current on scheduled cadences.
//
// # Application Architecture
//
// Components initialize in order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml, env)
//  2. Store: BadgerDB event store with a per-day start index
//  3. Source adapters: rate-limited API client behind a circuit breaker,
//     optional ICS feed client
//  4. Sync engine: normalization, change detection, idempotent upserts
//  5. Scheduler: cron cadences (nightly full season, hourly window)
//  6. HTTP server: health, metrics, manual triggers, status queries
//
// All long-running components run under a Suture supervisor tree.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (UPSTREAM_BASE_URL, SYNC_TIMEZONE, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, the scheduler waits for a running
// sync to finish, and the store closes cleanly.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/api"
	"github.com/bbernstein/chq-calendar-sub000/internal/cache"
	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/heuristics"
	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/normalize"
	"github.com/bbernstein/chq-calendar-sub000/internal/scheduler"
	upstreamapi "github.com/bbernstein/chq-calendar-sub000/internal/source/api"
	"github.com/bbernstein/chq-calendar-sub000/internal/source/ics"
	"github.com/bbernstein/chq-calendar-sub000/internal/status"
	"github.com/bbernstein/chq-calendar-sub000/internal/store"
	"github.com/bbernstein/chq-calendar-sub000/internal/supervisor"
	syncengine "github.com/bbernstein/chq-calendar-sub000/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Str("timezone", cfg.Sync.Timezone).
		Bool("ics_enabled", cfg.ICS.Enabled).
		Str("store_path", cfg.Store.Path).
		Msg("Configuration loaded")

	// Store: badger on disk, or in-memory when no path is configured.
	var eventStore store.EventStore
	if cfg.Store.Path != "" {
		badgerStore, err := store.OpenBadger(cfg.Store.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open event store")
		}
		eventStore = badgerStore
	} else {
		logging.Warn().Msg("No store path configured, using in-memory store")
		eventStore = store.NewMemoryStore()
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	responseCache := cache.New(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	defer responseCache.Close()

	// Upstream API client behind a circuit breaker.
	apiClient := upstreamapi.NewClient(&cfg.Upstream, responseCache, cfg.Cache.TTL)
	breakerClient := upstreamapi.NewCircuitBreakerClient(apiClient)
	if err := breakerClient.HealthCheck(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Upstream API unreachable at startup (will retry)")
	} else {
		logging.Info().Msg("Upstream API reachable")
	}

	var feedClient syncengine.FeedFetcher
	if cfg.ICS.Enabled {
		feedClient = ics.NewFeedClient(&cfg.ICS)
		logging.Info().Str("feed_url", cfg.ICS.FeedURL).Msg("ICS feed source enabled")
	}

	normalizer := normalize.New(heuristics.DefaultTables(), cfg.Sync.Timezone, cfg.ICS.UIDPrefix)
	tracker := status.NewTracker()
	engine := syncengine.NewEngine(breakerClient, feedClient, eventStore, normalizer, tracker, cfg.Sync)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		loc, err := time.LoadLocation(cfg.Sync.Timezone)
		if err != nil {
			logging.Fatal().Err(err).Str("timezone", cfg.Sync.Timezone).Msg("Invalid timezone")
		}
		sched = scheduler.New(engine, cfg.Scheduler, loc)
		tree.AddSyncService(supervisor.NewSchedulerService(sched))
		tree.AddSyncService(supervisor.NewPrimingService(sched))
		logging.Info().
			Str("daily_spec", cfg.Scheduler.DailySpec).
			Str("hourly_spec", cfg.Scheduler.HourlySpec).
			Msg("Scheduler services added")
	} else {
		logging.Warn().Msg("Scheduler disabled, syncs run only on manual trigger")
	}

	handler := api.NewHandler(engine, tracker, eventStore, schedulerStatus(sched))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // sync triggers may outlive any fixed write window
	}
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// schedulerStatus adapts a possibly-nil scheduler to the handler's
// optional status provider.
func schedulerStatus(s *scheduler.Scheduler) api.SchedulerStatusProvider {
	if s == nil {
		return nil
	}
	return s
}
