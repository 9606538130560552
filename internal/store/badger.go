// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/bbernstein/chq-calendar-sub000/internal/models"
)

// BadgerStore is the BadgerDB-backed EventStore.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB at path and wraps it in a
// BadgerStore.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for events: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the event with the given ID, or ErrNotFound.
func (s *BadgerStore) Get(_ context.Context, id string) (*models.CanonicalEvent, error) {
	var event models.CanonicalEvent

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(eventKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		})
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Put stores an event by ID and maintains the day index. When the
// start date moved, the stale index entry is removed in the same
// transaction.
func (s *BadgerStore) Put(_ context.Context, event *models.CanonicalEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		eventKey := []byte(eventKeyPrefix + event.ID)

		// Drop the old day index entry if the start date changed.
		item, err := txn.Get(eventKey)
		if err == nil {
			var prev models.CanonicalEvent
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); err != nil {
				return fmt.Errorf("unmarshal previous event: %w", err)
			}
			if oldKey := dayKey(&prev); oldKey != dayKey(event) {
				if err := txn.Delete([]byte(oldKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("delete stale day index: %w", err)
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get previous event: %w", err)
		}

		if err := txn.Set(eventKey, data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}
		if err := txn.Set([]byte(dayKey(event)), []byte(event.ID)); err != nil {
			return fmt.Errorf("set day index: %w", err)
		}
		return nil
	})
}

// Delete removes an event and its day index entry.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		eventKey := []byte(eventKeyPrefix + id)

		item, err := txn.Get(eventKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		var event models.CanonicalEvent
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		}); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}

		if err := txn.Delete(eventKey); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if err := txn.Delete([]byte(dayKey(&event))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete day index: %w", err)
		}
		return nil
	})
}

// IDsInRange returns IDs of events starting within the range by
// scanning the day index, one prefix per day.
func (s *BadgerStore) IDsInRange(_ context.Context, r models.DateRange) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, day := range daysIn(r) {
			prefix := []byte(dayKeyPrefix + day + ":")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().Key()
				ids = append(ids, string(key[len(prefix):]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan day index: %w", err)
	}
	return ids, nil
}

// EventsInRange loads the events starting within the range in day
// order.
func (s *BadgerStore) EventsInRange(ctx context.Context, r models.DateRange) ([]*models.CanonicalEvent, error) {
	ids, err := s.IDsInRange(ctx, r)
	if err != nil {
		return nil, err
	}

	events := make([]*models.CanonicalEvent, 0, len(ids))
	err = s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(eventKeyPrefix + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				// index ahead of data, skip
				continue
			}
			if err != nil {
				return fmt.Errorf("get event %s: %w", id, err)
			}
			var event models.CanonicalEvent
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event %s: %w", id, err)
			}
			events = append(events, &event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of stored events.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
