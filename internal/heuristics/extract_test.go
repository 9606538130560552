// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package heuristics

import (
	"testing"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

func TestPresenter(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		name    string
		summary string
		want    string
	}{
		{"with pattern", "Morning Lecture: The Future of AI with Dr. Jane Smith", "Dr. Jane Smith"},
		{"featuring pattern", "Evening Concert featuring The Davis Quartet", "The Davis Quartet"},
		{"by pattern", "A Reading by Maya Olsen", "Maya Olsen"},
		{"trailing colon", "Sacred Song Service: Rev. Thomas Hart", "Rev. Thomas Hart"},
		{"trailing dash", "Chamber Recital - Lena Webb", "Lena Webb"},
		{"no presenter", "Weekly Community Picnic", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tables.Presenter(tt.summary); got != tt.want {
				t.Errorf("Presenter(%q) = %q, want %q", tt.summary, got, tt.want)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		name       string
		categories []string
		summary    string
		wantCat    string
		wantSub    string
	}{
		{"symphony in categories", []string{"Symphony Orchestra"}, "", "Music", "Classical"},
		{"interfaith in categories", []string{"Interfaith Lecture Series"}, "", "Religion", "Worship"},
		{"categories beat free text", []string{"Opera"}, "lecture about opera", "Music", "Opera"},
		{"free text fallback", nil, "An evening lecture on ethics", "Education", "Lecture"},
		{"no match", nil, "Community gathering", FallbackCategory, FallbackSubcategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, sub := tables.Categorize(tt.categories, tt.summary, "")
			if cat != tt.wantCat || sub != tt.wantSub {
				t.Errorf("Categorize() = (%q, %q), want (%q, %q)", cat, sub, tt.wantCat, tt.wantSub)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		text string
		want models.Confidence
	}{
		{"Morning Lecture: TBA", models.ConfidenceTBA},
		{"Speaker to be announced", models.ConfidenceTBA},
		{"Tentative: Pops Concert", models.ConfidenceTentative},
		{"Placeholder event", models.ConfidencePlaceholder},
		{"Evening Concert", models.ConfidenceConfirmed},
		// "tba" must match as a whole word only
		{"Football exhibition", models.ConfidenceConfirmed},
	}

	for _, tt := range tests {
		if got := Confidence(tt.text); got != tt.want {
			t.Errorf("Confidence(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestAudience(t *testing.T) {
	tests := []struct {
		text string
		want models.Audience
	}{
		{"Kids art hour", models.AudienceChildren},
		{"Youth orchestra", models.AudienceChildren},
		{"Family movie night", models.AudienceFamily},
		{"Adult discussion group", models.AudienceAdult},
		{"Evening concert", models.AudienceAllAges},
	}

	for _, tt := range tests {
		if got := Audience(tt.text); got != tt.want {
			t.Errorf("Audience(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestIsFreeCost(t *testing.T) {
	tests := []struct {
		cost string
		want bool
	}{
		{"$0", true},
		{"0", true},
		{"0.00", true},
		{"Free", true},
		{"free admission", true},
		{"No charge", true},
		{"$25", false},
		{"12.50", false},
		{"", false},
		{"Donation suggested", false},
	}

	for _, tt := range tests {
		if got := IsFreeCost(tt.cost); got != tt.want {
			t.Errorf("IsFreeCost(%q) = %v, want %v", tt.cost, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chautauqua Symphony Orchestra", "chautauqua-symphony-orchestra"},
		{"Arts & Crafts", "arts-crafts"},
		{"  Lecture  ", "lecture"},
		{"Week One", "week-one"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignalTags(t *testing.T) {
	tags := SignalTags("Free outdoor family concert, no ticket required")
	want := map[string]bool{"free": true, "ticketed": true, "family-friendly": true, "outdoor": true}
	if len(tags) != len(want) {
		t.Fatalf("got %v, want keys %v", tags, want)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q in %v", tag, tags)
		}
	}
}

func TestExpandAbbreviations(t *testing.T) {
	tables := DefaultTables()

	tags := tables.ExpandAbbreviations("CSO at the Amp tonight")
	found := map[string]bool{}
	for _, tag := range tags {
		found[tag] = true
	}
	if !found["chautauqua symphony orchestra"] {
		t.Errorf("expected cso expansion, got %v", tags)
	}
	if !found["amphitheater"] {
		t.Errorf("expected amp expansion, got %v", tags)
	}

	// "ample" must not trigger the "amp" abbreviation.
	if tags := tables.ExpandAbbreviations("ample parking"); len(tags) != 0 {
		t.Errorf("expected no expansions for partial word, got %v", tags)
	}
}
