// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package heuristics

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

var (
	tbaPattern         = regexp.MustCompile(`(?i)\btba\b|\bto be announced\b`)
	tentativePattern   = regexp.MustCompile(`(?i)\btentative\b`)
	placeholderPattern = regexp.MustCompile(`(?i)\bplaceholder\b`)

	childrenPattern = regexp.MustCompile(`(?i)\bchildren\b|\bkids\b|\byouth\b`)
	familyPattern   = regexp.MustCompile(`(?i)\bfamily\b`)
	adultPattern    = regexp.MustCompile(`(?i)\badult\b|\bmature\b`)

	freePattern     = regexp.MustCompile(`(?i)\bfree\b|\bno charge\b|\bno-charge\b`)
	ticketedPattern = regexp.MustCompile(`(?i)\bticket\b|\bticketed\b|\badmission\b`)
	indoorPattern   = regexp.MustCompile(`(?i)\bindoor\b`)
	outdoorPattern  = regexp.MustCompile(`(?i)\boutdoor\b|\bopen.air\b`)

	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	currencyChars = regexp.MustCompile(`[^0-9.]`)
)

// Categorize maps an event's category strings and free text to a
// (category, subcategory) pair. Category strings are checked before the
// free text, rules in table order; the first match wins. No match falls
// back to General/Event.
func (t *Tables) Categorize(categories []string, summary, description string) (string, string) {
	catText := strings.ToLower(strings.Join(categories, " "))
	freeText := strings.ToLower(summary + " " + description)

	for _, rule := range t.CategoryRules {
		if strings.Contains(catText, rule.Keyword) {
			return rule.Category, rule.Subcategory
		}
	}
	for _, rule := range t.CategoryRules {
		if strings.Contains(freeText, rule.Keyword) {
			return rule.Category, rule.Subcategory
		}
	}
	return FallbackCategory, FallbackSubcategory
}

// Presenter extracts a presenter name from a summary by trying the
// pattern list in order. The first match wins; no match returns "".
func (t *Tables) Presenter(summary string) string {
	for _, p := range t.PresenterPatterns {
		m := p.FindStringSubmatch(summary)
		if len(m) < 2 {
			continue
		}
		name := strings.Trim(strings.TrimSpace(m[1]), ".,;")
		if name != "" {
			return name
		}
	}
	return ""
}

// Confidence scans title+description in priority order: TBA beats
// tentative beats placeholder; anything else is confirmed.
func Confidence(text string) models.Confidence {
	switch {
	case tbaPattern.MatchString(text):
		return models.ConfidenceTBA
	case tentativePattern.MatchString(text):
		return models.ConfidenceTentative
	case placeholderPattern.MatchString(text):
		return models.ConfidencePlaceholder
	default:
		return models.ConfidenceConfirmed
	}
}

// Audience infers the intended audience from keyword hits, defaulting
// to all-ages.
func Audience(text string) models.Audience {
	switch {
	case childrenPattern.MatchString(text):
		return models.AudienceChildren
	case familyPattern.MatchString(text):
		return models.AudienceFamily
	case adultPattern.MatchString(text):
		return models.AudienceAdult
	default:
		return models.AudienceAllAges
	}
}

// SignalTags extracts free/ticketed, audience, and indoor/outdoor
// signal words from free text.
func SignalTags(text string) []string {
	var tags []string
	if freePattern.MatchString(text) {
		tags = append(tags, "free")
	}
	if ticketedPattern.MatchString(text) {
		tags = append(tags, "ticketed")
	}
	switch Audience(text) {
	case models.AudienceChildren:
		tags = append(tags, "children")
	case models.AudienceFamily:
		tags = append(tags, "family-friendly")
	case models.AudienceAdult:
		tags = append(tags, "adult")
	case models.AudienceAllAges:
		// no signal tag
	}
	if indoorPattern.MatchString(text) {
		tags = append(tags, "indoor")
	}
	if outdoorPattern.MatchString(text) {
		tags = append(tags, "outdoor")
	}
	return tags
}

// IsFreeCost reports whether a cost string indicates a free event:
// empty amounts never count, "free"/"no charge" and zero amounts do.
func IsFreeCost(cost string) bool {
	if freePattern.MatchString(cost) {
		return true
	}
	numeric := currencyChars.ReplaceAllString(cost, "")
	if numeric == "" {
		return false
	}
	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return false
	}
	return amount == 0
}

// Slugify lowercases a string and collapses runs of non-alphanumeric
// characters into single hyphens.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// IsGenericCategory reports whether a category string is a season-week
// or similar generic label excluded from tag generation.
func (t *Tables) IsGenericCategory(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, label := range t.GenericCategoryLabels {
		if c == label {
			return true
		}
	}
	return false
}

// ExpandAbbreviations returns expansion tags for every abbreviation
// whose key appears as a word in the text.
func (t *Tables) ExpandAbbreviations(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for abbr, expansion := range t.Abbreviations {
		if containsWord(lower, abbr) {
			tags = append(tags, expansion)
		}
	}
	return tags
}

// EventTypeTags returns every event-type keyword present in the text.
func (t *Tables) EventTypeTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, kw := range t.EventTypeKeywords {
		if containsWord(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}

// containsWord reports whether word occurs in text bounded by
// non-alphanumeric characters.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(text[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(text) || !isAlnum(text[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
