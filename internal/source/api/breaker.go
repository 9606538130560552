// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/metrics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a dead
// upstream fails fast instead of stalling every scheduled sync.
//
// The breaker uses real time for its interval and timeout windows;
// unit tests should exercise the wrapped client directly.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[[]models.ApiSourceEvent]
	name   string
}

// NewCircuitBreakerClient wraps client in a breaker that opens at a
// 60% failure rate over at least 10 requests, resets its counts every
// minute, and probes again two minutes after opening.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	const cbName = "upstream-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.ApiSourceEvent](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening upstream circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// GetAllEventsInRange fetches a range through the breaker.
func (c *CircuitBreakerClient) GetAllEventsInRange(ctx context.Context, r models.DateRange) ([]models.ApiSourceEvent, error) {
	events, err := c.cb.Execute(func() ([]models.ApiSourceEvent, error) {
		return c.client.GetAllEventsInRange(ctx, r)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRejections.WithLabelValues(c.name).Inc()
			return nil, fmt.Errorf("upstream circuit open: %w", err)
		}
		return nil, err
	}
	return events, nil
}

// GetSeasonEvents fetches a full season through the breaker.
func (c *CircuitBreakerClient) GetSeasonEvents(ctx context.Context, year int, loc *time.Location) ([]models.ApiSourceEvent, error) {
	events, err := c.cb.Execute(func() ([]models.ApiSourceEvent, error) {
		return c.client.GetSeasonEvents(ctx, year, loc)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRejections.WithLabelValues(c.name).Inc()
			return nil, fmt.Errorf("upstream circuit open: %w", err)
		}
		return nil, err
	}
	return events, nil
}

// HealthCheck pings the upstream without going through the breaker so
// health reporting still works while the circuit is open.
func (c *CircuitBreakerClient) HealthCheck(ctx context.Context) error {
	return c.client.HealthCheck(ctx)
}

// ClearCache drops the wrapped client's cached responses.
func (c *CircuitBreakerClient) ClearCache() {
	c.client.ClearCache()
}

// State returns the current breaker state name.
func (c *CircuitBreakerClient) State() string {
	return c.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
