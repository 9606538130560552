// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/metrics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// maxFeedBytes caps how much of a feed response is read; a sane feed
// for one season is well under this.
const maxFeedBytes = 32 << 20 // 32MB

// FeedClient fetches and parses the published ICS feed.
type FeedClient struct {
	feedURL string
	client  *http.Client
}

// NewFeedClient creates a FeedClient from the ICS configuration.
func NewFeedClient(cfg *config.ICSConfig) *FeedClient {
	return &FeedClient{
		feedURL: cfg.FeedURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Fetch downloads the feed and parses it into source events.
func (c *FeedClient) Fetch(ctx context.Context) ([]models.IcsSourceEvent, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("ics").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("ics", "error").Inc()
		return nil, fmt.Errorf("fetch ics feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("ics", "error").Inc()
		return nil, fmt.Errorf("ics feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("ics", "error").Inc()
		return nil, fmt.Errorf("read ics feed: %w", err)
	}

	events, err := Parse(body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("ics", "error").Inc()
		return nil, fmt.Errorf("parse ics feed: %w", err)
	}

	metrics.UpstreamRequests.WithLabelValues("ics", "ok").Inc()
	return events, nil
}

// HealthCheck verifies the feed endpoint answers.
func (c *FeedClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.feedURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create feed request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ics feed health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ics feed health check: HTTP %d", resp.StatusCode)
	}
	return nil
}
