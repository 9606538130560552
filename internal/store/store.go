// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package store persists canonical events in a key-value store. The
// production implementation is BadgerDB; an in-memory implementation
// backs tests.
//
// Key layout:
//
//	event:{id}                  -> JSON canonical event
//	event_day:{YYYY-MM-DD}:{id} -> id
//
// The day index supports range scans for cleanup and event listing
// without iterating the whole event space.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// ErrNotFound is returned when an event does not exist in the store.
var ErrNotFound = errors.New("event not found")

const (
	eventKeyPrefix = "event:"
	dayKeyPrefix   = "event_day:"
	dayFormat      = "2006-01-02"
)

// EventStore is the persistence interface the sync engine writes
// through. Implementations must be safe for concurrent use.
type EventStore interface {
	// Get returns the event with the given canonical ID, or
	// ErrNotFound.
	Get(ctx context.Context, id string) (*models.CanonicalEvent, error)

	// Put stores an event, replacing any existing version and keeping
	// the day index consistent when the start date moved.
	Put(ctx context.Context, event *models.CanonicalEvent) error

	// Delete removes an event and its index entries. Deleting a
	// missing event returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// IDsInRange returns the IDs of stored events whose start date
	// falls within the range, bounds inclusive.
	IDsInRange(ctx context.Context, r models.DateRange) ([]string, error)

	// EventsInRange loads the events whose start date falls within
	// the range, bounds inclusive, in day order.
	EventsInRange(ctx context.Context, r models.DateRange) ([]*models.CanonicalEvent, error)

	// Count returns the number of stored events.
	Count(ctx context.Context) (int, error)

	Close() error
}

// dayKey builds the day index key for an event.
func dayKey(event *models.CanonicalEvent) string {
	return dayKeyPrefix + event.StartDate.Format(dayFormat) + ":" + event.ID
}

// daysIn lists the day strings covered by a range, bounds inclusive.
func daysIn(r models.DateRange) []string {
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, r.Start.Location())
	end := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayFormat))
	}
	return days
}
