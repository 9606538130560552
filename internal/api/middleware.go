// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/status"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader is the request id response header.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, honoring one supplied by the
// caller, and echoes it in the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			// sync runs created under this request record the id
			ctx = status.WithRequestID(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request id from a request context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging emits one structured access log line per request.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logging.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("request_id", GetRequestID(r.Context())).
				Str("remote", r.RemoteAddr).
				Msg("Request handled")
		})
	}
}
