// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package models defines the canonical event model shared by the source
// adapters, the normalizer, the sync engine, and the store.
//
// The central type is CanonicalEvent: the normalized, stored form of an
// event regardless of which upstream source produced it. Raw source
// shapes (ApiSourceEvent, IcsSourceEvent) live in source.go and are
// never stored directly.
package models

import (
	"strings"
	"time"
)

// Confidence is a qualitative certainty label for an event's details.
type Confidence string

// Confidence values, from most to least certain.
const (
	ConfidenceConfirmed   Confidence = "confirmed"
	ConfidenceTentative   Confidence = "tentative"
	ConfidencePlaceholder Confidence = "placeholder"
	ConfidenceTBA         Confidence = "TBA"
)

// Audience classifies the intended audience of an event.
type Audience string

const (
	AudienceChildren Audience = "children"
	AudienceFamily   Audience = "family-friendly"
	AudienceAdult    Audience = "adult-oriented"
	AudienceAllAges  Audience = "all-ages"
)

// SyncState tracks an event's relationship to its upstream source.
type SyncState string

const (
	SyncStateSynced   SyncState = "synced"
	SyncStatePending  SyncState = "pending"
	SyncStateError    SyncState = "error"
	SyncStateOutdated SyncState = "outdated"
)

// SourceKind identifies which adapter produced an event.
type SourceKind string

const (
	SourceAPI SourceKind = "api"
	SourceICS SourceKind = "ics"
)

// Venue is the structured location an event takes place in.
type Venue struct {
	ID      int    `json:"id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	ShowMap bool   `json:"showMap,omitempty"`
}

// Category is one node of the upstream's hierarchical taxonomy.
type Category struct {
	ID       int    `json:"id,omitempty"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy,omitempty"`
	Parent   int    `json:"parent,omitempty"`
}

// ChangeRecord is one field-level diff in an event's change log.
// The change log is append-only: entries are added on every material
// update and never rewritten.
type ChangeRecord struct {
	Field     string     `json:"field"`
	OldValue  string     `json:"oldValue"`
	NewValue  string     `json:"newValue"`
	Timestamp time.Time  `json:"timestamp"`
	Source    SourceKind `json:"source"`
}

// CanonicalEvent is the normalized event record stored and served.
//
// Identity: ID is stable across syncs (derived from the source id/uid);
// UID is a secondary backward-compatible identifier combining the id
// with the start time.
//
// Invariants:
//   - Week is always within [1,9]; out-of-season dates clamp to the
//     nearest boundary.
//   - Tags contain no duplicates under case/whitespace normalization.
//   - ChangeLog is append-only.
type CanonicalEvent struct {
	ID  string `json:"id"`
	UID string `json:"uid"`

	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Timezone    string    `json:"timezone,omitempty"`
	Location    string    `json:"location,omitempty"`
	Venue       Venue     `json:"venue"`

	Categories  []Category `json:"categories,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`

	Week       int        `json:"week"`
	Confidence Confidence `json:"confidence"`
	Audience   Audience   `json:"audience"`
	Presenter  string     `json:"presenter,omitempty"`

	Cost           string `json:"cost,omitempty"`
	TicketRequired bool   `json:"ticketRequired"`
	Status         string `json:"status,omitempty"`
	Featured       bool   `json:"featured,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`

	SyncStatus   SyncState      `json:"syncStatus"`
	Source       SourceKind     `json:"source"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastModified time.Time      `json:"lastModified"`
	ChangeLog    []ChangeRecord `json:"changeLog,omitempty"`
}

// HasTag reports whether the event carries the given tag under
// case/whitespace-normalized comparison.
func (e *CanonicalEvent) HasTag(tag string) bool {
	want := NormalizeTag(tag)
	for _, t := range e.Tags {
		if NormalizeTag(t) == want {
			return true
		}
	}
	return false
}

// NormalizeTag lowercases and trims a tag for duplicate comparison.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// DateRange is a half-open-ended inclusive date window used for fetch
// and sync scoping.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of whole days the range spans.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
