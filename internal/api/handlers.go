// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
	"github.com/bbernstein/chq-calendar-sub000/internal/scheduler"
	"github.com/bbernstein/chq-calendar-sub000/internal/store"
	syncengine "github.com/bbernstein/chq-calendar-sub000/internal/sync"
	"github.com/bbernstein/chq-calendar-sub000/internal/validation"
)

const dateLayout = "2006-01-02"

// SyncTrigger is the engine surface the handlers invoke.
type SyncTrigger interface {
	SyncHourly(ctx context.Context) (*models.SyncResult, error)
	SyncIncremental(ctx context.Context) (*models.SyncResult, error)
	SyncSeason(ctx context.Context, year int) (*models.SyncResult, error)
	SyncICS(ctx context.Context) (*models.SyncResult, error)
	SyncCustomRange(ctx context.Context, start, end time.Time) (*models.SyncResult, error)
	GetHealthStatus(ctx context.Context) models.HealthStatus
	ClearCache()
}

// StatusReader is the tracker surface the handlers query.
type StatusReader interface {
	GetRun(id string) (*models.SyncRunStatus, bool)
	RecentRuns(syncType string, limit int) []models.SyncRunStatus
	ActiveRuns() []models.SyncRunStatus
	Statistics(windowDays int) models.SyncStatistics
}

// SchedulerStatusProvider reports the cron cadences. Nil when the
// scheduler is disabled.
type SchedulerStatusProvider interface {
	Status() scheduler.Status
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	engine    SyncTrigger
	status    StatusReader
	store     store.EventStore
	scheduler SchedulerStatusProvider
}

// NewHandler creates the handler set. scheduler may be nil.
func NewHandler(engine SyncTrigger, status StatusReader, eventStore store.EventStore, sched SchedulerStatusProvider) *Handler {
	return &Handler{engine: engine, status: status, store: eventStore, scheduler: sched}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: GetRequestID(r.Context())})
}

// writeSyncOutcome maps an engine result to a response: 409 when a
// sync already holds the guard, 502 when the fetch itself failed, 200
// with the result otherwise (including partial failures, which the
// result itself reports).
func writeSyncOutcome(w http.ResponseWriter, r *http.Request, result *models.SyncResult, err error) {
	if errors.Is(err, syncengine.ErrSyncInProgress) {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil && result == nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.engine.GetHealthStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// SyncHourly handles POST /api/v1/sync/hourly.
func (h *Handler) SyncHourly(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncHourly(r.Context())
	writeSyncOutcome(w, r, result, err)
}

// SyncIncremental handles POST /api/v1/sync/incremental.
func (h *Handler) SyncIncremental(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncIncremental(r.Context())
	writeSyncOutcome(w, r, result, err)
}

// seasonRequest is the optional body of POST /api/v1/sync/season.
type seasonRequest struct {
	Year int `json:"year" validate:"omitempty,min=2000,max=2100"`
}

// SyncSeason handles POST /api/v1/sync/season. An empty body or zero
// year selects the configured season.
func (h *Handler) SyncSeason(w http.ResponseWriter, r *http.Request) {
	var req seasonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if err := validation.ValidateStruct(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	result, err := h.engine.SyncSeason(r.Context(), req.Year)
	writeSyncOutcome(w, r, result, err)
}

// rangeRequest is the body of POST /api/v1/sync/range.
type rangeRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// SyncRange handles POST /api/v1/sync/range.
func (h *Handler) SyncRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	start, _ := time.Parse(dateLayout, req.Start)
	end, _ := time.Parse(dateLayout, req.End)
	if end.Before(start) {
		writeError(w, r, http.StatusBadRequest, "end must not be before start")
		return
	}

	result, err := h.engine.SyncCustomRange(r.Context(), start, end)
	writeSyncOutcome(w, r, result, err)
}

// SyncICS handles POST /api/v1/sync/ics.
func (h *Handler) SyncICS(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncICS(r.Context())
	writeSyncOutcome(w, r, result, err)
}

// syncStatusResponse is the body of GET /api/v1/sync/status.
type syncStatusResponse struct {
	Active []models.SyncRunStatus `json:"active"`
	Recent []models.SyncRunStatus `json:"recent"`
}

// SyncStatus handles GET /api/v1/sync/status?type=hourly&limit=N.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	resp := syncStatusResponse{
		Active: h.status.ActiveRuns(),
		Recent: h.status.RecentRuns(r.URL.Query().Get("type"), limit),
	}
	if resp.Active == nil {
		resp.Active = []models.SyncRunStatus{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SyncRunByID handles GET /api/v1/sync/status/{id}.
func (h *Handler) SyncRunByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := h.status.GetRun(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "sync run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// SyncStatistics handles GET /api/v1/sync/statistics?days=N.
func (h *Handler) SyncStatistics(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, r, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, h.status.Statistics(days))
}

// eventsResponse is the body of GET /api/v1/events.
type eventsResponse struct {
	Events []*models.CanonicalEvent `json:"events"`
	Count  int                      `json:"count"`
}

// Events handles GET /api/v1/events?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, r, http.StatusBadRequest, "end must not be before start")
		return
	}

	// end is inclusive date-wise; extend to the end of that day
	scope := models.DateRange{Start: start, End: end.Add(24*time.Hour - time.Second)}
	events, err := h.store.EventsInRange(r.Context(), scope)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*models.CanonicalEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

// SchedulerStatus handles GET /api/v1/scheduler.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusOK, scheduler.Status{Running: false})
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// CacheClear handles POST /api/v1/cache/clear.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
