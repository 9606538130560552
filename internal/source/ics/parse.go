// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package ics ingests the institution's published ICS feed. Parsing
// is tolerant: a malformed VEVENT is skipped, not fatal, so one bad
// entry never blocks the rest of the feed.
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/bbernstein/chq-calendar-sub000/internal/logging"
	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// lastModifiedLayout is the UTC timestamp form of LAST-MODIFIED.
const lastModifiedLayout = "20060102T150405Z"

// Parse extracts events from an ICS payload. Entries missing any of
// uid, summary, start, or end are dropped; the remainder are returned
// in feed order.
func Parse(body []byte) ([]models.IcsSourceEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]models.IcsSourceEvent, 0, len(cal.Events()))
	skipped := 0
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			skipped++
			logging.Debug().Err(perr).Msg("Skipping unusable ICS entry")
			continue
		}
		events = append(events, ev)
	}

	if skipped > 0 {
		logging.Warn().
			Int("skipped", skipped).
			Int("parsed", len(events)).
			Msg("ICS feed contained unusable entries")
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (models.IcsSourceEvent, error) {
	var out models.IcsSourceEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if out.Summary == "" {
		return out, errors.New("missing SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, errors.New("missing or unparseable DTSTART")
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, errors.New("missing or unparseable DTEND")
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyAttach); p != nil {
		out.Attachment = p.Value
	}

	// CATEGORIES may appear more than once, each holding a
	// comma-separated list.
	for _, p := range ve.Properties {
		if !strings.EqualFold(p.IANAToken, "CATEGORIES") {
			continue
		}
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Categories = append(out.Categories, c)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyLastModified); p != nil {
		if t, err := time.Parse(lastModifiedLayout, p.Value); err == nil {
			out.LastModified = &t
		}
	}

	return out, nil
}

// NeedsUpdate reports whether an incoming feed entry is newer than the
// stored event by the LAST-MODIFIED rule. When either side lacks a
// timestamp the answer is true, so entries without LAST-MODIFIED are
// re-applied rather than silently left stale.
func NeedsUpdate(storedLastModified time.Time, incoming *models.IcsSourceEvent) bool {
	if incoming.LastModified == nil || storedLastModified.IsZero() {
		return true
	}
	return incoming.LastModified.After(storedLastModified)
}
