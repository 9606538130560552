// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package models

import "time"

// ApiSourceEvent is the raw event shape returned by the upstream JSON
// REST API. It is externally supplied and never mutated.
type ApiSourceEvent struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"` // HTML
	StartDate   string         `json:"start_date"`  // "2006-01-02 15:04:05"
	EndDate     string         `json:"end_date"`
	Timezone    string         `json:"timezone"`
	Venue       ApiVenue       `json:"venue"`
	Categories  []ApiCategory  `json:"categories"`
	Cost        string         `json:"cost"`
	Image       *ApiImage      `json:"image,omitempty"`
	Status      string         `json:"status"`
	Featured    bool           `json:"featured"`
	URL         string         `json:"url,omitempty"`
}

// ApiVenue is the nested venue object of an ApiSourceEvent.
type ApiVenue struct {
	ID      int    `json:"id"`
	Name    string `json:"venue"`
	Address string `json:"address"`
	ShowMap bool   `json:"show_map"`
}

// ApiCategory is one entry of an ApiSourceEvent's hierarchical
// category list.
type ApiCategory struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
	Parent   int    `json:"parent"`
}

// ApiImage is the image metadata attached to an ApiSourceEvent.
type ApiImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// PagedResponse is one page of the upstream events endpoint. The
// adapter follows NextRestURL until it is absent.
type PagedResponse struct {
	Events      []ApiSourceEvent `json:"events"`
	Total       int              `json:"total"`
	TotalPages  int              `json:"total_pages"`
	NextRestURL string           `json:"next_rest_url,omitempty"`
}

// IcsSourceEvent is a discrete event record parsed out of the upstream
// ICS feed. Records missing uid, summary, start, or end are dropped at
// parse time and never reach this type.
type IcsSourceEvent struct {
	UID          string     `json:"uid"`
	Summary      string     `json:"summary"`
	Description  string     `json:"description,omitempty"`
	Location     string     `json:"location,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Attachment   string     `json:"attachment,omitempty"`
}

// RawSourceEvent is the tagged union of the two upstream shapes. The
// normalizer switches exhaustively on Kind; exactly one of the two
// pointers is set.
type RawSourceEvent struct {
	Kind SourceKind
	API  *ApiSourceEvent
	ICS  *IcsSourceEvent
}

// FromAPI wraps an API event in the union.
func FromAPI(ev *ApiSourceEvent) RawSourceEvent {
	return RawSourceEvent{Kind: SourceAPI, API: ev}
}

// FromICS wraps an ICS event in the union.
func FromICS(ev *IcsSourceEvent) RawSourceEvent {
	return RawSourceEvent{Kind: SourceICS, ICS: ev}
}
