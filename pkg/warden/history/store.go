package history

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a history entry doesn't exist.
var ErrNotFound = errors.New("history entry not found")

// Store wraps Badger for history operations.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates a history store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", path, err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e, assigning an ID and time when unset, and returns the
// stored entry.
func (s *Store) Record(e Entry) (Entry, error) {
	if e.Root == "" {
		return Entry{}, errors.New("history entry root cannot be empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = s.now()
	}

	value, err := e.Encode()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode history entry: %w", err)
	}
	key := MakeKey(&e)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(makeIndexKey(e.ID), key)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record history entry: %w", err)
	}
	return e, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(id string) (*Entry, error) {
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeIndexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns up to limit entries for root, newest first. An empty root
// lists every root. A limit of zero or less means no limit.
func (s *Store) List(root string, limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions

		if root != "" {
			prefix := MakeKeyPrefix(root)
			opts.Reverse = true
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
				var e Entry
				if err := it.Item().Value(e.Decode); err != nil {
					return err
				}
				entries = append(entries, e)
				if limit > 0 && len(entries) >= limit {
					break
				}
			}
			return nil
		}

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if bytes.HasPrefix(it.Item().Key(), indexPrefix) {
				continue
			}
			var e Entry
			if err := it.Item().Value(e.Decode); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	if root == "" {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Time.After(entries[j].Time)
		})
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
	}
	return entries, nil
}

// Cleanup removes entries older than retention and returns how many were
// removed.
func (s *Store) Cleanup(retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	removed := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if bytes.HasPrefix(item.Key(), indexPrefix) {
				continue
			}
			var e Entry
			if err := item.Value(e.Decode); err != nil {
				it.Close()
				return err
			}
			if e.Time.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil), makeIndexKey(e.ID))
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = len(stale) / 2
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean history: %w", err)
	}
	return removed, nil
}
