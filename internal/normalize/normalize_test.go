// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/heuristics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

func newTestNormalizer() *Normalizer {
	return New(heuristics.DefaultTables(), "America/New_York", "ics")
}

func apiEvent() *models.ApiSourceEvent {
	return &models.ApiSourceEvent{
		ID:          4521,
		Title:       "Morning Lecture: The Future of AI with Dr. Jane Smith",
		Description: "<p>A <b>morning lecture</b> on artificial&nbsp;intelligence.</p>",
		StartDate:   "2025-07-01 10:45:00",
		EndDate:     "2025-07-01 12:00:00",
		Timezone:    "America/New_York",
		Venue: models.ApiVenue{
			ID:   7,
			Name: "Amphitheater",
		},
		Categories: []models.ApiCategory{
			{ID: 3, Name: "Lecture", Slug: "lecture"},
			{ID: 9, Name: "Week Two", Slug: "week-two"},
		},
		Cost:   "Free",
		Status: "publish",
	}
}

func TestNormalizeAPI(t *testing.T) {
	n := newTestNormalizer()

	event, err := n.Normalize(models.FromAPI(apiEvent()))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if event.ID != "chq-4521" {
		t.Errorf("ID = %q, want chq-4521", event.ID)
	}
	if event.UID != "chq-4521-20250701T104500" {
		t.Errorf("UID = %q", event.UID)
	}
	if event.Source != models.SourceAPI {
		t.Errorf("Source = %q, want api", event.Source)
	}

	// HTML must be stripped from the description
	if event.Description != "A morning lecture on artificial intelligence." {
		t.Errorf("Description = %q", event.Description)
	}

	if event.Category != "Education" || event.Subcategory != "Lecture" {
		t.Errorf("Category = %s/%s, want Education/Lecture", event.Category, event.Subcategory)
	}
	if event.Presenter != "Dr. Jane Smith" {
		t.Errorf("Presenter = %q, want Dr. Jane Smith", event.Presenter)
	}

	// 2025-07-01 is in week 2 (season starts 2025-06-22)
	if event.Week != 2 {
		t.Errorf("Week = %d, want 2", event.Week)
	}

	if event.TicketRequired {
		t.Error("free event must not require a ticket")
	}
	if !event.HasTag("free") {
		t.Errorf("expected free tag, got %v", event.Tags)
	}
	if !event.HasTag("amphitheater") {
		t.Errorf("expected venue tag, got %v", event.Tags)
	}
	if event.HasTag("week two") || event.HasTag("week-two") {
		t.Errorf("generic week category must not become a tag: %v", event.Tags)
	}
}

func TestNormalizeAPIPaidEventGetsTicketedTag(t *testing.T) {
	n := newTestNormalizer()

	ev := apiEvent()
	ev.Title = "Evening Gala"
	ev.Description = "An evening performance."
	ev.Venue.Name = "Elizabeth S. Lenna Hall"
	ev.Cost = "$25"
	event, err := n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}

	if !event.TicketRequired {
		t.Error("paid event must require a ticket")
	}
	if !event.HasTag("ticketed") {
		t.Errorf("expected ticketed tag, got %v", event.Tags)
	}
	if event.HasTag("free") {
		t.Errorf("paid event must not carry the free tag: %v", event.Tags)
	}
}

func TestNormalizeAPIKeepsUnmatchedSourceCategory(t *testing.T) {
	n := newTestNormalizer()

	ev := apiEvent()
	ev.Title = "Morning Session"
	ev.Description = "A gathering on the grounds."
	ev.Categories = []models.ApiCategory{
		{ID: 41, Name: "Special Studies", Slug: "special-studies"},
	}
	event, err := n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}

	// no keyword or priority match, so the upstream category survives
	if event.Category != "Special Studies" {
		t.Errorf("Category = %q, want Special Studies", event.Category)
	}
}

func TestNormalizeAPIDeterministic(t *testing.T) {
	n := newTestNormalizer()

	a, err := n.Normalize(models.FromAPI(apiEvent()))
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize(models.FromAPI(apiEvent()))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("normalization not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeAPITimes(t *testing.T) {
	n := newTestNormalizer()

	event, err := n.Normalize(models.FromAPI(apiEvent()))
	if err != nil {
		t.Fatal(err)
	}

	loc, _ := time.LoadLocation("America/New_York")
	want := time.Date(2025, 7, 1, 10, 45, 0, 0, loc)
	if !event.StartDate.Equal(want) {
		t.Errorf("StartDate = %v, want %v", event.StartDate, want)
	}
	if event.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", event.Timezone)
	}
}

func TestNormalizeAPIBadDates(t *testing.T) {
	n := newTestNormalizer()

	ev := apiEvent()
	ev.StartDate = "not a date"
	if _, err := n.Normalize(models.FromAPI(ev)); err == nil {
		t.Error("expected error for unparseable start date")
	}

	// end before start collapses to start
	ev = apiEvent()
	ev.EndDate = "2025-06-30 09:00:00"
	event, err := n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}
	if !event.EndDate.Equal(event.StartDate) {
		t.Errorf("EndDate = %v, want collapsed to start", event.EndDate)
	}

	// missing end date collapses to start
	ev = apiEvent()
	ev.EndDate = ""
	event, err = n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}
	if !event.EndDate.Equal(event.StartDate) {
		t.Errorf("EndDate = %v, want start", event.EndDate)
	}
}

func TestNormalizeICS(t *testing.T) {
	n := newTestNormalizer()

	lastMod := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)
	raw := &models.IcsSourceEvent{
		UID:          "abc-123@chq.org",
		Summary:      "Sacred Song Service: Rev. Thomas Hart",
		Description:  "An evening service of sacred song.",
		Location:     "Amphitheater, Chautauqua Institution, NY",
		Categories:   []string{"Worship"},
		Start:        time.Date(2025, 6, 29, 23, 0, 0, 0, time.UTC), // 19:00 EDT
		End:          time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		LastModified: &lastMod,
	}

	event, err := n.Normalize(models.FromICS(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if event.ID != "ics-abc-123-chq-org" {
		t.Errorf("ID = %q", event.ID)
	}
	if event.UID != "abc-123@chq.org" {
		t.Errorf("UID = %q, want native feed uid", event.UID)
	}
	if event.Source != models.SourceICS {
		t.Errorf("Source = %q", event.Source)
	}

	// venue is the first comma segment, location the second
	if event.Venue.Name != "Amphitheater" {
		t.Errorf("Venue.Name = %q", event.Venue.Name)
	}
	if event.Location != "Chautauqua Institution" {
		t.Errorf("Location = %q", event.Location)
	}

	if event.Category != "Religion" || event.Subcategory != "Worship" {
		t.Errorf("Category = %s/%s", event.Category, event.Subcategory)
	}
	if event.Presenter != "Rev. Thomas Hart" {
		t.Errorf("Presenter = %q", event.Presenter)
	}

	// start converts to institution local time; 2025-06-29 19:00 EDT
	// falls in week 2
	if event.StartDate.Hour() != 19 {
		t.Errorf("StartDate local hour = %d, want 19", event.StartDate.Hour())
	}
	if event.Week != 2 {
		t.Errorf("Week = %d, want 2", event.Week)
	}

	if !event.LastModified.Equal(lastMod) {
		t.Errorf("LastModified = %v, want %v", event.LastModified, lastMod)
	}
}

func TestNormalizeICSMissingFields(t *testing.T) {
	n := newTestNormalizer()

	raw := &models.IcsSourceEvent{
		UID:     "x@chq.org",
		Summary: "", // required
		Start:   time.Now(),
		End:     time.Now(),
	}
	if _, err := n.Normalize(models.FromICS(raw)); err == nil {
		t.Error("expected error for missing summary")
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	n := newTestNormalizer()
	if _, err := n.Normalize(models.RawSourceEvent{Kind: "csv"}); err == nil {
		t.Error("expected error for unknown source kind")
	}
}

func TestWeekClampsOutOfSeason(t *testing.T) {
	n := newTestNormalizer()

	ev := apiEvent()
	ev.StartDate = "2025-03-01 10:00:00"
	ev.EndDate = "2025-03-01 11:00:00"
	event, err := n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}
	if event.Week != 1 {
		t.Errorf("pre-season Week = %d, want clamp to 1", event.Week)
	}

	ev = apiEvent()
	ev.StartDate = "2025-10-01 10:00:00"
	ev.EndDate = "2025-10-01 11:00:00"
	event, err = n.Normalize(models.FromAPI(ev))
	if err != nil {
		t.Fatal(err)
	}
	if event.Week != 9 {
		t.Errorf("post-season Week = %d, want clamp to 9", event.Week)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"a &amp; b", "a & b"},
		{"  spaced\n\nout  ", "spaced out"},
		{"<div><span>nested</span> <em>tags</em></div>", "nested tags"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
