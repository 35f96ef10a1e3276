package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/account"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu      sync.RWMutex
	records map[solana.PublicKey]*storage.Record
	journal []*storage.JournalEntry
	ids     map[string]struct{}
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[solana.PublicKey]*storage.Record),
		ids:     make(map[string]struct{}),
	}
}

var _ storage.Store = (*Store)(nil)

func copyRecord(r *storage.Record) *storage.Record {
	c := *r
	c.Data = bytes.Clone(r.Data)
	return &c
}

// Get returns the record at address. Returns ErrNotFound if not exists.
func (s *Store) Get(_ context.Context, address solana.PublicKey) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *Store) List(_ context.Context, kind account.Kind) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Record
	for _, r := range s.records {
		if r.Kind == kind {
			out = append(out, copyRecord(r))
		}
	}
	storage.SortByAddress(out)
	return out, nil
}

// Save validates everything before writing so a rejected batch changes nothing.
func (s *Store) Save(_ context.Context, entry *storage.JournalEntry, records ...*storage.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry != nil {
		if entry.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := s.ids[entry.ID]; dup {
			return storage.ErrDuplicateKey
		}
	}

	now := time.Now().UTC()
	for _, r := range records {
		c := copyRecord(r)
		c.UpdatedAt = now
		s.records[r.Address] = c
	}
	if entry != nil {
		e := *entry
		if e.RecordedAt.IsZero() {
			e.RecordedAt = now
		}
		s.journal = append(s.journal, &e)
		s.ids[e.ID] = struct{}{}
	}
	return nil
}

func (s *Store) Journal(_ context.Context, filter storage.JournalFilter) ([]*storage.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.JournalEntry
	for _, e := range s.journal {
		if !filter.Match(e) {
			continue
		}
		c := *e
		out = append(out, &c)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
