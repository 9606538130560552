// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
)

type countingService struct {
	serves atomic.Int64
}

func (c *countingService) Serve(ctx context.Context) error {
	c.serves.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeServeAndShutdown(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	svc := &countingService{}
	tree.AddSyncService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for svc.serves.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("service never served")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("tree stopped with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeConfigDefaults(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("threshold %v", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout %v", tree.config.ShutdownTimeout)
	}
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: "127.0.0.1:0", Handler: mux}
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// give the listener a moment, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestHTTPServiceListenError(t *testing.T) {
	server := &http.Server{Addr: "256.256.256.256:1", Handler: http.NewServeMux()}
	svc := NewHTTPService(server, time.Second)

	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestServiceNames(t *testing.T) {
	if got := (&HTTPService{}).String(); got != "http-server" {
		t.Errorf("http service name %q", got)
	}
	if got := (&SchedulerService{}).String(); got != "scheduler" {
		t.Errorf("scheduler service name %q", got)
	}
	if got := (&PrimingService{}).String(); got != "priming-sync" {
		t.Errorf("priming service name %q", got)
	}
}
