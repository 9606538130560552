// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package season implements the institution's season-date math.
//
// The season is the nine weeks beginning on the fourth Sunday of June.
// Week numbers are integers 1-9; dates outside the season clamp to the
// nearest boundary. This is the single canonical implementation shared
// by the API and ICS ingestion paths.
package season

import (
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// Weeks is the fixed number of weeks in a season.
const Weeks = 9

// DefaultTimezone is the institution's local timezone, used when an
// event carries no timezone of its own.
const DefaultTimezone = "America/New_York"

// DefaultLocation resolves DefaultTimezone, falling back to UTC if the
// zone database is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FourthSundayOfJune returns midnight on the fourth Sunday of June for
// the given year in loc, found by walking the days of June and counting
// Sundays.
func FourthSundayOfJune(year int, loc *time.Location) time.Time {
	sundays := 0
	for day := 1; day <= 30; day++ {
		d := time.Date(year, time.June, day, 0, 0, 0, 0, loc)
		if d.Weekday() == time.Sunday {
			sundays++
			if sundays == 4 {
				return d
			}
		}
	}
	// June always contains at least four Sundays; unreachable.
	return time.Date(year, time.June, 30, 0, 0, 0, 0, loc)
}

// Start returns the first instant of the season for year.
func Start(year int, loc *time.Location) time.Time {
	return FourthSundayOfJune(year, loc)
}

// End returns the last instant of the season: the end of the ninth
// week.
func End(year int, loc *time.Location) time.Time {
	return Start(year, loc).AddDate(0, 0, Weeks*7).Add(-time.Second)
}

// Range returns the full season window for year.
func Range(year int, loc *time.Location) models.DateRange {
	return models.DateRange{Start: Start(year, loc), End: End(year, loc)}
}

// WeekOf returns the season week (1-9) containing t, computed in t's
// own location. Dates before the season clamp to 1, dates after clamp
// to 9.
func WeekOf(t time.Time) int {
	start := Start(t.Year(), t.Location())
	week := int(t.Sub(start).Hours()/(24*7)) + 1
	if t.Before(start) {
		week = 1
	}
	if week < 1 {
		week = 1
	}
	if week > Weeks {
		week = Weeks
	}
	return week
}

// WeeklyChunks splits a range into sequential sub-ranges of at most
// seven days each. A full-season fetch walks these chunks one at a
// time, bounding the largest single upstream request.
func WeeklyChunks(r models.DateRange) []models.DateRange {
	var chunks []models.DateRange
	for cur := r.Start; cur.Before(r.End); {
		next := cur.AddDate(0, 0, 7)
		end := next.Add(-time.Second)
		if end.After(r.End) {
			end = r.End
		}
		chunks = append(chunks, models.DateRange{Start: cur, End: end})
		cur = next
	}
	return chunks
}
