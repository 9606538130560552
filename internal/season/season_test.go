// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package season

import (
	"testing"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

func TestFourthSundayOfJune(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2023, "2023-06-25"},
		{2024, "2024-06-23"},
		{2025, "2025-06-22"},
		{2026, "2026-06-28"},
		{2027, "2027-06-27"},
	}

	for _, tt := range tests {
		got := FourthSundayOfJune(tt.year, time.UTC)
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("year %d: got %s, want %s", tt.year, got.Format("2006-01-02"), tt.want)
		}
		if got.Weekday() != time.Sunday {
			t.Errorf("year %d: %s is not a Sunday", tt.year, got.Format("2006-01-02"))
		}
	}
}

func TestWeekOf(t *testing.T) {
	mustParse := func(s string) time.Time {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		return ts
	}

	tests := []struct {
		name string
		date string
		want int
	}{
		{"season first day", "2025-06-22 09:00:00", 1},
		{"end of first week", "2025-06-28 23:00:00", 1},
		{"start of second week", "2025-06-29 00:00:00", 2},
		{"mid season", "2025-07-20 12:00:00", 5},
		{"last week", "2025-08-19 09:00:00", 9},
		{"before season clamps to 1", "2025-05-01 09:00:00", 1},
		{"after season clamps to 9", "2025-10-01 09:00:00", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekOf(mustParse(tt.date)); got != tt.want {
				t.Errorf("WeekOf(%s) = %d, want %d", tt.date, got, tt.want)
			}
		})
	}
}

// Week numbers must never decrease as a date advances through a season.
func TestWeekOfMonotonic(t *testing.T) {
	loc := time.UTC
	prev := 0
	for d := time.Date(2025, 6, 1, 12, 0, 0, 0, loc); d.Before(time.Date(2025, 10, 1, 0, 0, 0, 0, loc)); d = d.AddDate(0, 0, 1) {
		week := WeekOf(d)
		if week < prev {
			t.Fatalf("week decreased at %s: %d -> %d", d.Format("2006-01-02"), prev, week)
		}
		if week < 1 || week > Weeks {
			t.Fatalf("week out of range at %s: %d", d.Format("2006-01-02"), week)
		}
		prev = week
	}
}

func TestWeeklyChunks(t *testing.T) {
	r := Range(2025, time.UTC)
	chunks := WeeklyChunks(r)

	if len(chunks) != Weeks {
		t.Fatalf("expected %d chunks for a full season, got %d", Weeks, len(chunks))
	}
	if !chunks[0].Start.Equal(r.Start) {
		t.Errorf("first chunk starts at %s, want %s", chunks[0].Start, r.Start)
	}
	if !chunks[len(chunks)-1].End.Equal(r.End) {
		t.Errorf("last chunk ends at %s, want %s", chunks[len(chunks)-1].End, r.End)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start.Before(chunks[i-1].End) {
			t.Errorf("chunk %d overlaps previous: %s < %s", i, chunks[i].Start, chunks[i-1].End)
		}
	}
}

func TestWeeklyChunksShortRange(t *testing.T) {
	r := models.DateRange{
		Start: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 3, 23, 59, 59, 0, time.UTC),
	}
	chunks := WeeklyChunks(r)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !chunks[0].End.Equal(r.End) {
		t.Errorf("chunk end %s, want %s", chunks[0].End, r.End)
	}
}
