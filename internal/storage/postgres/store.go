package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/account"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	pool   *Pool
	logger *zap.Logger
}

// NewStore creates a Store on an open pool. Call RunMigrations first.
func NewStore(pool *Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger.Named("postgres-store")}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Get returns the record at address. Returns ErrNotFound if not exists.
func (s *Store) Get(ctx context.Context, address solana.PublicKey) (*storage.Record, error) {
	query := `
		SELECT address, kind, data, updated_at
		FROM accounts
		WHERE address = $1
	`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, address.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, kind account.Kind) ([]*storage.Record, error) {
	query := `
		SELECT address, kind, data, updated_at
		FROM accounts
		WHERE kind = $1
	`
	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", kind, err)
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s account: %w", kind, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", kind, err)
	}
	// Base58 text does not sort like the raw key bytes.
	storage.SortByAddress(out)
	return out, nil
}

// Save upserts records and appends entry in one transaction.
func (s *Store) Save(ctx context.Context, entry *storage.JournalEntry, records ...*storage.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if entry != nil && entry.ID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	upsert := `
		INSERT INTO accounts (address, kind, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (address) DO UPDATE
		SET kind = EXCLUDED.kind, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	for _, r := range records {
		if _, err := tx.Exec(ctx, upsert, r.Address.String(), string(r.Kind), r.Data); err != nil {
			return fmt.Errorf("upsert account %s: %w", r.Address, err)
		}
	}

	if entry != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode journal entry: %w", err)
		}
		insert := `
			INSERT INTO journal (id, operation, token, ts, payload)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, insert, entry.ID, entry.Operation, entry.Token.String(), entry.Timestamp, payload); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert journal entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	s.logger.Debug("Records saved", zap.Int("records", len(records)), zap.Bool("journal", entry != nil))
	return nil
}

func (s *Store) Journal(ctx context.Context, filter storage.JournalFilter) ([]*storage.JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if !filter.Token.IsZero() {
		args = append(args, filter.Token.String())
		where = append(where, fmt.Sprintf("token = $%d", len(args)))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		where = append(where, fmt.Sprintf("operation = $%d", len(args)))
	}
	if filter.Since != 0 {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}

	query := "SELECT payload, recorded_at FROM journal"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []*storage.JournalEntry
	for rows.Next() {
		var (
			payload []byte
			e       storage.JournalEntry
		)
		if err := rows.Scan(&payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		recordedAt := e.RecordedAt
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		e.RecordedAt = recordedAt
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*storage.Record, error) {
	var (
		r       storage.Record
		address string
		kind    string
	)
	if err := row.Scan(&address, &kind, &r.Data, &r.UpdatedAt); err != nil {
		return nil, err
	}
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	r.Address = key
	r.Kind = account.Kind(kind)
	return &r, nil
}
