// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// ChangeDetector computes field-level diffs between the stored version
// of an event and a freshly normalized one. Only the watched fields
// participate; bookkeeping fields (CreatedAt, SyncStatus, ChangeLog
// itself) never trigger an update.
type ChangeDetector struct{}

// NewChangeDetector creates a ChangeDetector.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Detect returns the change records for every watched field that
// differs between old and new. An empty result means the event is
// unchanged and the upsert can be skipped.
func (d *ChangeDetector) Detect(oldEvent, newEvent *models.CanonicalEvent, at time.Time) []models.ChangeRecord {
	var changes []models.ChangeRecord
	record := func(field, oldVal, newVal string) {
		changes = append(changes, models.ChangeRecord{
			Field:     field,
			OldValue:  oldVal,
			NewValue:  newVal,
			Timestamp: at,
			Source:    newEvent.Source,
		})
	}

	if oldEvent.Title != newEvent.Title {
		record("title", oldEvent.Title, newEvent.Title)
	}
	if oldEvent.Description != newEvent.Description {
		record("description", oldEvent.Description, newEvent.Description)
	}
	// dates compare by instant so a timezone re-spelling of the same
	// moment is not a change
	if !oldEvent.StartDate.Equal(newEvent.StartDate) {
		record("startDate", formatInstant(oldEvent.StartDate), formatInstant(newEvent.StartDate))
	}
	if !oldEvent.EndDate.Equal(newEvent.EndDate) {
		record("endDate", formatInstant(oldEvent.EndDate), formatInstant(newEvent.EndDate))
	}
	if oldEvent.Location != newEvent.Location {
		record("location", oldEvent.Location, newEvent.Location)
	}
	if oldEvent.Cost != newEvent.Cost {
		record("cost", oldEvent.Cost, newEvent.Cost)
	}
	if oldEvent.Status != newEvent.Status {
		record("status", oldEvent.Status, newEvent.Status)
	}
	if oldEvent.Featured != newEvent.Featured {
		record("featured", strconv.FormatBool(oldEvent.Featured), strconv.FormatBool(newEvent.Featured))
	}
	if !sameCategorySet(oldEvent.Categories, newEvent.Categories) {
		record("categories", categoryNames(oldEvent.Categories), categoryNames(newEvent.Categories))
	}
	if !sameTagSet(oldEvent.Tags, newEvent.Tags) {
		record("tags", strings.Join(oldEvent.Tags, ","), strings.Join(newEvent.Tags, ","))
	}

	return changes
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// sameCategorySet compares category lists as sets of names, so
// upstream reordering is not a change.
func sameCategorySet(a, b []models.Category) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, c := range a {
		seen[strings.ToLower(c.Name)]++
	}
	for _, c := range b {
		name := strings.ToLower(c.Name)
		if seen[name] == 0 {
			return false
		}
		seen[name]--
	}
	return true
}

// sameTagSet compares tag lists as normalized sets.
func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, t := range a {
		seen[models.NormalizeTag(t)]++
	}
	for _, t := range b {
		tag := models.NormalizeTag(t)
		if seen[tag] == 0 {
			return false
		}
		seen[tag]--
	}
	return true
}

func categoryNames(cats []models.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return strings.Join(names, ",")
}
