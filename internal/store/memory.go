// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// MemoryStore is an in-memory EventStore used in tests and when no
// store path is configured. Events are kept as JSON so reads return
// independent copies, matching BadgerStore semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]byte
	days   map[string]string // id -> YYYY-MM-DD
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]byte),
		days:   make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.CanonicalEvent, error) {
	s.mu.RLock()
	data, ok := s.events[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	var event models.CanonicalEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *MemoryStore) Put(_ context.Context, event *models.CanonicalEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.events[event.ID] = data
	s.days[event.ID] = event.StartDate.Format(dayFormat)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	delete(s.days, id)
	return nil
}

func (s *MemoryStore) IDsInRange(_ context.Context, r models.DateRange) ([]string, error) {
	wanted := make(map[string]bool, len(daysIn(r)))
	for _, day := range daysIn(r) {
		wanted[day] = true
	}

	s.mu.RLock()
	var ids []string
	for id, day := range s.days {
		if wanted[day] {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) EventsInRange(ctx context.Context, r models.DateRange) ([]*models.CanonicalEvent, error) {
	ids, err := s.IDsInRange(ctx, r)
	if err != nil {
		return nil, err
	}

	events := make([]*models.CanonicalEvent, 0, len(ids))
	for _, id := range ids {
		event, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
