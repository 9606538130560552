// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/config"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Chautauqua Institution//Events//EN
BEGIN:VEVENT
UID:evt-100@chq.org
SUMMARY:Morning Lecture with Dr. Jane Smith
DESCRIPTION:A lecture on the future of AI.
LOCATION:Amphitheater\, Chautauqua Institution
CATEGORIES:Lecture,Week Two
DTSTART:20250701T144500Z
DTEND:20250701T160000Z
LAST-MODIFIED:20250620T080000Z
END:VEVENT
BEGIN:VEVENT
UID:evt-101@chq.org
SUMMARY:Evening Concert
DTSTART:20250701T230000Z
DTEND:20250702T010000Z
END:VEVENT
BEGIN:VEVENT
UID:evt-102@chq.org
SUMMARY:
DTSTART:20250702T120000Z
DTEND:20250702T130000Z
END:VEVENT
END:VCALENDAR
`

func TestParse(t *testing.T) {
	events, err := Parse([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// the entry with an empty summary is dropped
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	ev := events[0]
	if ev.UID != "evt-100@chq.org" {
		t.Errorf("UID = %q", ev.UID)
	}
	if ev.Summary != "Morning Lecture with Dr. Jane Smith" {
		t.Errorf("Summary = %q", ev.Summary)
	}
	if !strings.HasPrefix(ev.Location, "Amphitheater") {
		t.Errorf("Location = %q", ev.Location)
	}
	if len(ev.Categories) != 2 || ev.Categories[0] != "Lecture" || ev.Categories[1] != "Week Two" {
		t.Errorf("Categories = %v", ev.Categories)
	}

	wantStart := time.Date(2025, 7, 1, 14, 45, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}

	if ev.LastModified == nil {
		t.Fatal("expected LastModified")
	}
	wantMod := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)
	if !ev.LastModified.Equal(wantMod) {
		t.Errorf("LastModified = %v, want %v", ev.LastModified, wantMod)
	}

	// second event has no optional fields
	if events[1].LastModified != nil {
		t.Error("expected nil LastModified for bare event")
	}
	if len(events[1].Categories) != 0 {
		t.Errorf("Categories = %v, want none", events[1].Categories)
	}
}

func TestParseEmptyBody(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestNeedsUpdate(t *testing.T) {
	stored := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)

	newer := stored.Add(time.Hour)
	older := stored.Add(-time.Hour)

	tests := []struct {
		name     string
		incoming *time.Time
		want     bool
	}{
		{"newer feed entry", &newer, true},
		{"older feed entry", &older, false},
		{"same timestamp", &stored, false},
		{"no last-modified", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &models.IcsSourceEvent{LastModified: tt.incoming}
			if got := NeedsUpdate(stored, ev); got != tt.want {
				t.Errorf("NeedsUpdate = %v, want %v", got, tt.want)
			}
		})
	}

	if !NeedsUpdate(time.Time{}, &models.IcsSourceEvent{LastModified: &older}) {
		t.Error("NeedsUpdate = false for zero stored timestamp, want true")
	}
}

func TestFeedClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := NewFeedClient(&config.ICSConfig{
		FeedURL: server.URL,
		Timeout: 5 * time.Second,
	})

	events, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestFeedClientFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewFeedClient(&config.ICSConfig{
		FeedURL: server.URL,
		Timeout: 5 * time.Second,
	})

	if _, err := client.Fetch(context.Background()); err == nil {
		t.Error("expected error for HTTP 404")
	}
}
