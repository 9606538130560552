// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package api fetches events from the institution's paginated JSON
// REST API.
//
// The client handles the upstream's operational quirks so callers
// don't have to:
//   - HTTP 429 responses retry with exponential backoff (1s, 2s, 4s),
//     honoring a Retry-After header when present
//   - page requests are paced through a rate limiter
//   - ranges longer than the chunk threshold are fetched as weekly
//     chunks with a pause between chunks
//   - identical page requests within the cache TTL are served from the
//     response cache
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/bbernstein/chq-calendar-sub000/internal/cache"
	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/metrics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
	"github.com/bbernstein/chq-calendar-sub000/internal/season"
)

// dateParamLayout is the date format of the upstream's start_date and
// end_date query parameters.
const dateParamLayout = "2006-01-02"

// maxErrorBodyBytes bounds how much of an error response body is kept
// for the error message.
const maxErrorBodyBytes = 512

// UpstreamError is a non-200 response from the upstream API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ResponseCache is the cache surface the client needs. *cache.Cache
// satisfies it; tests may inject their own.
type ResponseCache interface {
	Get(key string) (interface{}, bool)
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Clear()
}

// Client fetches events from the upstream REST API.
//
// Thread safety: safe for concurrent use; each request creates its own
// HTTP request and the limiter serializes page pacing.
type Client struct {
	baseURL        string
	apiPath        string
	perPage        int
	client         *http.Client
	cache          ResponseCache
	cacheTTL       time.Duration
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
	chunkDelay     time.Duration
	chunkThreshold int
}

// NewClient creates a Client from the upstream configuration. The
// response cache may be nil to disable caching.
func NewClient(cfg *config.UpstreamConfig, responseCache ResponseCache, cacheTTL time.Duration) *Client {
	pageDelay := cfg.PageDelay
	if pageDelay <= 0 {
		pageDelay = 100 * time.Millisecond
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiPath: cfg.APIPath,
		perPage: cfg.PerPage,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:          responseCache,
		cacheTTL:       cacheTTL,
		limiter:        rate.NewLimiter(rate.Every(pageDelay), 1),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: 1 * time.Second,
		chunkDelay:     cfg.ChunkDelay,
		chunkThreshold: cfg.ChunkThresholdDays,
	}
}

// pageParams is the cache key material for one page request.
type pageParams struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// GetEvents fetches a single page of events within the range.
func (c *Client) GetEvents(ctx context.Context, r models.DateRange, page int) (*models.PagedResponse, error) {
	params := pageParams{
		Start:   r.Start.Format(dateParamLayout),
		End:     r.End.Format(dateParamLayout),
		Page:    page,
		PerPage: c.perPage,
	}
	key := cache.GenerateKey("events", params)

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if resp, ok := cached.(*models.PagedResponse); ok {
				metrics.CacheHits.Inc()
				return resp, nil
			}
		}
		metrics.CacheMisses.Inc()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("start_date", params.Start)
	query.Set("end_date", params.End)
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.perPage))
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, c.apiPath, query.Encode())

	resp, err := c.fetchPage(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.SetWithTTL(key, resp, c.cacheTTL)
	}
	return resp, nil
}

// fetchPage performs one request with 429 retry handling and decodes
// the page payload.
func (c *Client) fetchPage(ctx context.Context, reqURL string) (*models.PagedResponse, error) {
	start := time.Now()
	httpResp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.UpstreamRequestDuration.WithLabelValues("api").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("api", "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("api", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		return nil, &UpstreamError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	var page models.PagedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&page); err != nil {
		metrics.UpstreamRequests.WithLabelValues("api", "error").Inc()
		return nil, fmt.Errorf("decode events page: %w", err)
	}

	metrics.UpstreamRequests.WithLabelValues("api", "ok").Inc()
	return &page, nil
}

// doRequestWithRateLimit performs an HTTP GET with automatic retry on
// HTTP 429. Backoff doubles per attempt from the base delay and a
// Retry-After header overrides the computed delay. The context cancels
// backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited, close body and retry with backoff
		_ = resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("api", "rate_limited").Inc()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		metrics.UpstreamRetries.Inc()
		logging.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Upstream rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// GetAllEventsInRange fetches every event in the range, following
// pagination. Ranges longer than the chunk threshold are split into
// weekly chunks with a pause between chunks so full-season fetches
// stay polite.
func (c *Client) GetAllEventsInRange(ctx context.Context, r models.DateRange) ([]models.ApiSourceEvent, error) {
	if r.Days() <= c.chunkThreshold {
		return c.fetchRange(ctx, r)
	}

	var all []models.ApiSourceEvent
	chunks := season.WeeklyChunks(r)
	for i, chunk := range chunks {
		events, err := c.fetchRange(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d (%s): %w",
				i+1, len(chunks), chunk.Start.Format(dateParamLayout), err)
		}
		all = append(all, events...)

		if i < len(chunks)-1 && c.chunkDelay > 0 {
			select {
			case <-time.After(c.chunkDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return all, nil
}

// fetchRange walks the pages of one range until the upstream reports
// no further page.
func (c *Client) fetchRange(ctx context.Context, r models.DateRange) ([]models.ApiSourceEvent, error) {
	var all []models.ApiSourceEvent

	for page := 1; ; page++ {
		resp, err := c.GetEvents(ctx, r, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, resp.Events...)

		// next-URL absence is the only terminator; total_pages is
		// advisory and sometimes wrong upstream
		if resp.NextRestURL == "" {
			break
		}
	}

	logging.Debug().
		Int("events", len(all)).
		Str("start", r.Start.Format(dateParamLayout)).
		Str("end", r.End.Format(dateParamLayout)).
		Msg("Fetched upstream range")
	return all, nil
}

// GetSeasonEvents fetches the full season for a year.
func (c *Client) GetSeasonEvents(ctx context.Context, year int, loc *time.Location) ([]models.ApiSourceEvent, error) {
	return c.GetAllEventsInRange(ctx, season.Range(year, loc))
}

// HealthCheck verifies the upstream answers a minimal request.
func (c *Client) HealthCheck(ctx context.Context) error {
	now := time.Now()
	_, err := c.GetEvents(ctx, models.DateRange{Start: now, End: now}, 1)
	if err != nil {
		return fmt.Errorf("upstream health check: %w", err)
	}
	return nil
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}
