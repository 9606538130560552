// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package api provides the HTTP admin surface using Chi router: health
// and metrics, manual sync triggers, sync status queries, event reads,
// and cache management.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers into the route tree.
type Router struct {
	handler *Handler
}

// NewRouter creates a Router around a handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())

	r.Get("/healthz", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/hourly", router.handler.SyncHourly)
			r.Post("/incremental", router.handler.SyncIncremental)
			r.Post("/season", router.handler.SyncSeason)
			r.Post("/range", router.handler.SyncRange)
			r.Post("/ics", router.handler.SyncICS)
			r.Get("/status", router.handler.SyncStatus)
			r.Get("/status/{id}", router.handler.SyncRunByID)
			r.Get("/statistics", router.handler.SyncStatistics)
		})

		r.Get("/events", router.handler.Events)
		r.Get("/scheduler", router.handler.SchedulerStatus)
		r.Post("/cache/clear", router.handler.CacheClear)
	})

	return r
}
