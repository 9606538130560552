// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package normalize converts raw source events from either upstream
// shape into the canonical event model. Normalization is pure and
// deterministic: the same raw event always produces the same canonical
// event, which is what makes change detection and idempotent upserts
// possible downstream.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/heuristics"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
	"github.com/bbernstein/chq-calendar-sub000/internal/season"
)

// ErrUnknownSource is returned for a raw event whose Kind is not a
// known source.
var ErrUnknownSource = errors.New("unknown source kind")

// apiTimeLayout is the upstream REST API's local-time format.
const apiTimeLayout = "2006-01-02 15:04:05"

// apiIDPrefix namespaces canonical IDs minted from API events.
const apiIDPrefix = "chq"

// minTagLength drops noise tags shorter than three characters.
const minTagLength = 3

// Normalizer converts raw source events into canonical events using an
// injected heuristics rule set and the institution's timezone.
type Normalizer struct {
	tables    *heuristics.Tables
	loc       *time.Location
	icsPrefix string
}

// New creates a Normalizer. An unresolvable timezone falls back to the
// institution default; an empty icsPrefix defaults to "ics".
func New(tables *heuristics.Tables, timezone, icsPrefix string) *Normalizer {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = season.DefaultLocation()
	}
	if icsPrefix == "" {
		icsPrefix = "ics"
	}
	return &Normalizer{tables: tables, loc: loc, icsPrefix: icsPrefix}
}

// Normalize converts a raw source event into its canonical form.
func (n *Normalizer) Normalize(raw models.RawSourceEvent) (*models.CanonicalEvent, error) {
	switch raw.Kind {
	case models.SourceAPI:
		if raw.API == nil {
			return nil, fmt.Errorf("%w: api payload missing", ErrUnknownSource)
		}
		return n.normalizeAPI(raw.API)
	case models.SourceICS:
		if raw.ICS == nil {
			return nil, fmt.Errorf("%w: ics payload missing", ErrUnknownSource)
		}
		return n.normalizeICS(raw.ICS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, raw.Kind)
	}
}

func (n *Normalizer) normalizeAPI(ev *models.ApiSourceEvent) (*models.CanonicalEvent, error) {
	loc := n.loc
	if ev.Timezone != "" {
		if l, err := time.LoadLocation(ev.Timezone); err == nil {
			loc = l
		}
	}

	start, err := time.ParseInLocation(apiTimeLayout, ev.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("event %d: parse start_date %q: %w", ev.ID, ev.StartDate, err)
	}
	end := start
	if ev.EndDate != "" {
		end, err = time.ParseInLocation(apiTimeLayout, ev.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("event %d: parse end_date %q: %w", ev.ID, ev.EndDate, err)
		}
	}
	if end.Before(start) {
		end = start
	}

	title := StripHTML(ev.Title)
	desc := StripHTML(ev.Description)
	text := title + " " + desc

	categories := make([]models.Category, 0, len(ev.Categories))
	names := make([]string, 0, len(ev.Categories))
	for _, c := range ev.Categories {
		slug := c.Slug
		if slug == "" {
			slug = heuristics.Slugify(c.Name)
		}
		categories = append(categories, models.Category{
			ID:       c.ID,
			Name:     c.Name,
			Slug:     slug,
			Taxonomy: c.Taxonomy,
			Parent:   c.Parent,
		})
		names = append(names, c.Name)
	}

	id := fmt.Sprintf("%s-%d", apiIDPrefix, ev.ID)
	event := &models.CanonicalEvent{
		ID:          id,
		UID:         fmt.Sprintf("%s-%s", id, start.Format("20060102T150405")),
		Title:       title,
		Description: desc,
		StartDate:   start,
		EndDate:     end,
		Timezone:    loc.String(),
		Location:    ev.Venue.Name,
		Venue: models.Venue{
			ID:      ev.Venue.ID,
			Name:    ev.Venue.Name,
			Address: ev.Venue.Address,
			ShowMap: ev.Venue.ShowMap,
		},
		Categories: categories,
		Cost:       ev.Cost,
		Status:     ev.Status,
		Featured:   ev.Featured,
		SyncStatus: models.SyncStateSynced,
		Source:     models.SourceAPI,
	}
	if ev.Image != nil {
		event.ImageURL = ev.Image.URL
	}

	n.enrich(event, names, title, text)
	return event, nil
}

func (n *Normalizer) normalizeICS(ev *models.IcsSourceEvent) (*models.CanonicalEvent, error) {
	if ev.UID == "" || ev.Summary == "" || ev.Start.IsZero() || ev.End.IsZero() {
		return nil, fmt.Errorf("ics event %q: missing required fields", ev.UID)
	}

	start := ev.Start.In(n.loc)
	end := ev.End.In(n.loc)
	if end.Before(start) {
		end = start
	}

	title := collapseWhitespace(ev.Summary)
	desc := collapseWhitespace(ev.Description)
	text := title + " " + desc

	// "Amphitheater, Chautauqua" splits into venue and location; a
	// single segment serves as both
	venueName := strings.TrimSpace(ev.Location)
	locationName := venueName
	if parts := strings.SplitN(ev.Location, ",", 3); len(parts) > 1 {
		venueName = strings.TrimSpace(parts[0])
		locationName = strings.TrimSpace(parts[1])
	}

	categories := make([]models.Category, 0, len(ev.Categories))
	names := make([]string, 0, len(ev.Categories))
	for _, name := range ev.Categories {
		categories = append(categories, models.Category{
			Name: name,
			Slug: heuristics.Slugify(name),
		})
		names = append(names, name)
	}

	id := fmt.Sprintf("%s-%s", n.icsPrefix, heuristics.Slugify(ev.UID))
	event := &models.CanonicalEvent{
		ID:            id,
		UID:           ev.UID,
		Title:         title,
		Description:   desc,
		StartDate:     start,
		EndDate:       end,
		Timezone:      n.loc.String(),
		Location:      locationName,
		Venue:         models.Venue{Name: venueName},
		Categories:    categories,
		AttachmentURL: ev.Attachment,
		SyncStatus:    models.SyncStateSynced,
		Source:        models.SourceICS,
	}
	if ev.LastModified != nil {
		event.LastModified = *ev.LastModified
	}

	n.enrich(event, names, title, text)
	return event, nil
}

// enrich fills in the derived fields shared by both source paths:
// categorization, week number, confidence, audience, presenter, ticket
// inference, and the tag set.
func (n *Normalizer) enrich(event *models.CanonicalEvent, categoryNames []string, title, text string) {
	cat, sub := n.tables.Categorize(categoryNames, title, event.Description)
	if cat == heuristics.FallbackCategory {
		cat, sub = n.primaryFromUpstream(event, categoryNames, cat, sub)
	}
	event.Category = cat
	event.Subcategory = sub

	event.Week = season.WeekOf(event.StartDate)
	event.Confidence = heuristics.Confidence(text)
	event.Audience = heuristics.Audience(text)
	event.Presenter = n.tables.Presenter(title)

	free := heuristics.IsFreeCost(event.Cost)
	event.TicketRequired = event.Cost != "" && !free

	event.Tags = n.buildTags(event, text, free)
}

// primaryFromUpstream falls back to the upstream category list when no
// keyword rule matched, choosing by the configured priority order. API
// events that match nothing in the priority list still keep their
// first upstream category rather than degrading to General.
func (n *Normalizer) primaryFromUpstream(event *models.CanonicalEvent, names []string, cat, sub string) (string, string) {
	for _, p := range n.tables.PrimaryCategoryPriority {
		want := strings.ToLower(p)
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), want) {
				return p, sub
			}
		}
	}
	if event.Source == models.SourceAPI && len(names) > 0 {
		return names[0], sub
	}
	return cat, sub
}

// buildTags assembles the deduplicated, sorted tag set: venue name,
// non-generic upstream categories (name and slug), text signal words,
// abbreviation expansions, event-type keywords, and a cost-derived
// free or ticketed tag. Tags shorter than three characters are
// dropped.
func (n *Normalizer) buildTags(event *models.CanonicalEvent, text string, free bool) []string {
	set := make(map[string]bool)
	add := func(tag string) {
		tag = models.NormalizeTag(tag)
		if len(tag) < minTagLength {
			return
		}
		set[tag] = true
	}

	add(event.Venue.Name)
	for _, c := range event.Categories {
		if n.tables.IsGenericCategory(c.Name) {
			continue
		}
		add(c.Name)
		add(c.Slug)
	}
	for _, t := range heuristics.SignalTags(text) {
		add(t)
	}
	for _, t := range n.tables.ExpandAbbreviations(text) {
		add(t)
	}
	for _, t := range n.tables.EventTypeTags(text) {
		add(t)
	}
	if free {
		add("free")
	} else if event.TicketRequired {
		add("ticketed")
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
