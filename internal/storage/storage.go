// internal/storage/storage.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/account"
)

var (
	// ErrNotFound is returned when no record lives at an address.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a journal entry id is reused.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record or entry fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Record is an encoded account stored under its derived address.
type Record struct {
	Address   solana.PublicKey
	Kind      account.Kind
	Data      []byte
	UpdatedAt time.Time
}

// JournalEntry describes one committed operation.
type JournalEntry struct {
	ID          string           `json:"id"`
	Operation   string           `json:"operation"`
	Token       solana.PublicKey `json:"token"`
	Actor       solana.PublicKey `json:"actor"`
	SolAmount   uint64           `json:"sol_amount"`
	TokenAmount uint64           `json:"token_amount"`
	Fee         uint64           `json:"fee"`
	// Timestamp is the exchange clock reading the operation ran at.
	Timestamp  int64     `json:"timestamp"`
	RecordedAt time.Time `json:"recorded_at"`
}

// JournalFilter selects journal entries. Zero fields match everything.
type JournalFilter struct {
	Token     solana.PublicKey
	Operation string
	Since     int64
	Limit     int
}

// Match reports whether e passes the token, operation and time filters.
func (f JournalFilter) Match(e *JournalEntry) bool {
	if !f.Token.IsZero() && !f.Token.Equals(e.Token) {
		return false
	}
	if f.Operation != "" && f.Operation != e.Operation {
		return false
	}
	return e.Timestamp >= f.Since
}

// Store persists exchange records and the operation journal.
type Store interface {
	// Get returns the record at address or ErrNotFound.
	Get(ctx context.Context, address solana.PublicKey) (*Record, error)
	// List returns every record of kind ordered by address.
	List(ctx context.Context, kind account.Kind) ([]*Record, error)
	// Save upserts records and appends entry as one unit. entry may be nil.
	Save(ctx context.Context, entry *JournalEntry, records ...*Record) error
	// Journal returns matching entries in commit order.
	Journal(ctx context.Context, filter JournalFilter) ([]*JournalEntry, error)
	Close() error
}

// Validate checks the fields every backend relies on.
func (r *Record) Validate() error {
	if r == nil || r.Address.IsZero() || r.Kind == "" || len(r.Data) < account.DiscriminatorSize {
		return ErrInvalidInput
	}
	return nil
}

// SortByAddress orders records by raw address bytes.
func SortByAddress(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Address[:], records[j].Address[:]) < 0
	})
}
