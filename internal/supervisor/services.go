// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/scheduler"
)

// SchedulerService adapts the cron scheduler to suture.Service. Serve
// starts the cadences and blocks until the context is canceled, then
// stops the cron loop and waits for in-flight jobs.
type SchedulerService struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerService wraps a scheduler for supervision.
func NewSchedulerService(s *scheduler.Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: s}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.scheduler.Stop()
	return ctx.Err()
}

func (s *SchedulerService) String() string { return "scheduler" }

// HTTPService adapts an http.Server to suture.Service with graceful
// shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an http.Server for supervision.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. ListenAndServe runs in a goroutine
// so context cancellation can trigger a graceful Shutdown.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	<-errCh
	return ctx.Err()
}

func (s *HTTPService) String() string { return "http-server" }

// PrimingService runs one immediate full sync when the tree starts,
// then parks until shutdown. Failures are logged, not fatal: the
// scheduled cadences will retry.
type PrimingService struct {
	scheduler *scheduler.Scheduler
}

// NewPrimingService wraps the scheduler's immediate sync for startup.
func NewPrimingService(s *scheduler.Scheduler) *PrimingService {
	return &PrimingService{scheduler: s}
}

// Serve implements suture.Service.
func (s *PrimingService) Serve(ctx context.Context) error {
	if _, err := s.scheduler.PerformImmediateFullSync(ctx); err != nil {
		logging.Warn().Err(err).Msg("Startup priming sync failed")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *PrimingService) String() string { return "priming-sync" }
