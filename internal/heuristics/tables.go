// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package heuristics holds the table-driven text heuristics used to
// classify and enrich events: category keyword rules, abbreviation
// expansion, presenter extraction patterns, and audience/confidence
// keyword scans.
//
// All heuristics are data, not code: callers construct a Tables value
// (usually DefaultTables) and pass it to the normalizer and the ICS
// adapter, so rules can be extended or substituted in tests without
// touching the extraction logic.
package heuristics

import "regexp"

// CategoryRule maps a keyword found in categories, summary, or
// description text to a (category, subcategory) pair. Rules are
// evaluated in order; the first match wins.
type CategoryRule struct {
	Keyword     string
	Category    string
	Subcategory string
}

// FallbackCategory and FallbackSubcategory are used when no rule
// matches.
const (
	FallbackCategory    = "General"
	FallbackSubcategory = "Event"
)

// Tables is the full heuristic rule set.
type Tables struct {
	// CategoryRules is the priority-ordered keyword table. Category
	// text is checked before free text; first match wins.
	CategoryRules []CategoryRule

	// Abbreviations expands institution shorthand into full tag words
	// (e.g. "amp" -> "amphitheater").
	Abbreviations map[string]string

	// EventTypeKeywords become tags when found in title or
	// description text.
	EventTypeKeywords []string

	// PresenterPatterns is the ordered list of regexes tried against a
	// summary to extract a presenter name. Each must have exactly one
	// capture group. First match wins.
	PresenterPatterns []*regexp.Regexp

	// PrimaryCategoryPriority is checked against an event's category
	// names in order; the first present name becomes the primary
	// category.
	PrimaryCategoryPriority []string

	// GenericCategoryLabels are category strings (season-week labels
	// and similar) excluded from tag generation.
	GenericCategoryLabels []string
}

// DefaultTables returns the built-in rule set tuned for the
// institution's published program.
func DefaultTables() *Tables {
	return &Tables{
		CategoryRules: []CategoryRule{
			{Keyword: "symphony", Category: "Music", Subcategory: "Classical"},
			{Keyword: "orchestra", Category: "Music", Subcategory: "Classical"},
			{Keyword: "chamber music", Category: "Music", Subcategory: "Classical"},
			{Keyword: "opera", Category: "Music", Subcategory: "Opera"},
			{Keyword: "jazz", Category: "Music", Subcategory: "Jazz"},
			{Keyword: "concert", Category: "Music", Subcategory: "Popular"},
			{Keyword: "recital", Category: "Music", Subcategory: "Recital"},
			{Keyword: "interfaith", Category: "Religion", Subcategory: "Worship"},
			{Keyword: "worship", Category: "Religion", Subcategory: "Worship"},
			{Keyword: "sacred song", Category: "Religion", Subcategory: "Worship"},
			{Keyword: "chaplain", Category: "Religion", Subcategory: "Sermon"},
			{Keyword: "theater", Category: "Theater", Subcategory: "Play"},
			{Keyword: "theatre", Category: "Theater", Subcategory: "Play"},
			{Keyword: "play", Category: "Theater", Subcategory: "Play"},
			{Keyword: "dance", Category: "Dance", Subcategory: "Performance"},
			{Keyword: "ballet", Category: "Dance", Subcategory: "Ballet"},
			{Keyword: "lecture", Category: "Education", Subcategory: "Lecture"},
			{Keyword: "masterclass", Category: "Education", Subcategory: "Class"},
			{Keyword: "workshop", Category: "Education", Subcategory: "Workshop"},
			{Keyword: "class", Category: "Education", Subcategory: "Class"},
			{Keyword: "literary", Category: "Literary Arts", Subcategory: "Reading"},
			{Keyword: "author", Category: "Literary Arts", Subcategory: "Reading"},
			{Keyword: "poetry", Category: "Literary Arts", Subcategory: "Poetry"},
			{Keyword: "film", Category: "Film", Subcategory: "Screening"},
			{Keyword: "cinema", Category: "Film", Subcategory: "Screening"},
			{Keyword: "gallery", Category: "Visual Arts", Subcategory: "Exhibition"},
			{Keyword: "exhibition", Category: "Visual Arts", Subcategory: "Exhibition"},
			{Keyword: "art", Category: "Visual Arts", Subcategory: "Exhibition"},
			{Keyword: "youth", Category: "Youth", Subcategory: "Program"},
			{Keyword: "children", Category: "Youth", Subcategory: "Program"},
			{Keyword: "recreation", Category: "Recreation", Subcategory: "Activity"},
			{Keyword: "tour", Category: "Recreation", Subcategory: "Tour"},
		},
		Abbreviations: map[string]string{
			"amp":  "amphitheater",
			"cso":  "chautauqua symphony orchestra",
			"ctc":  "chautauqua theater company",
			"clsc": "literary and scientific circle",
			"hop":  "hall of philosophy",
			"msfo": "music school festival orchestra",
		},
		EventTypeKeywords: []string{
			"lecture", "concert", "workshop", "recital", "masterclass",
			"play", "film", "tour", "service", "class", "reading",
			"panel", "discussion",
		},
		PresenterPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bwith\s+(.+?)\s*$`),
			regexp.MustCompile(`(?i)\bfeaturing\s+(.+?)\s*$`),
			regexp.MustCompile(`(?i)\bby\s+(.+?)\s*$`),
			regexp.MustCompile(`:\s*([^:]+?)\s*$`),
			regexp.MustCompile(`^\s*([^:]+?)\s*:`),
			regexp.MustCompile(`-\s*([^-]+?)\s*$`),
		},
		PrimaryCategoryPriority: []string{
			"Lecture", "Music", "Religion", "Theater", "Dance",
			"Education", "Literary Arts", "Visual Arts", "Film",
			"Youth", "Recreation",
		},
		GenericCategoryLabels: []string{
			"week one", "week two", "week three", "week four",
			"week five", "week six", "week seven", "week eight",
			"week nine", "events", "all events", "season",
		},
	}
}
