package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

//go:embed sqlite_schema.sql
var sqliteSchemaSQL string

// SQLiteStore persists records in a local SQLite file. The pool is capped at
// one connection, so every transaction runs alone and transitions on the
// same key cannot interleave.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := NewSQLiteStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return s, nil
}

// EnsureSchema applies sqlite_schema.sql one statement at a time.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, key string, rec ledger.EventRecord) error {
	supply, err := toInt64(rec.TokenSupply)
	if err != nil {
		return ledger.AllocationError(err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events(event_key, creator, name, description, token_supply, tokens_claimed, is_active, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (event_key) DO NOTHING`,
		key, string(rec.Creator), string(rec.Name), string(rec.Description),
		supply, int64(rec.TokensClaimed), rec.IsActive, rec.CreatedAt.Unix())
	if err != nil {
		return ledger.AllocationError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.AllocationError(err)
	}
	if n == 0 {
		return ledger.AllocationError(errSlotOccupied(key))
	}
	return nil
}

const sqliteSelectEvent = `
	SELECT creator, name, description, token_supply, tokens_claimed, is_active, created_at
	FROM events
	WHERE event_key=?`

func (s *SQLiteStore) Update(ctx context.Context, key string, fn Mutation) (ledger.EventRecord, *Receipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.EventRecord{}, nil, err
	}
	defer tx.Rollback()

	current, err := scanSQLiteEvent(tx.QueryRowContext(ctx, sqliteSelectEvent, key))
	if err != nil {
		return ledger.EventRecord{}, nil, err
	}

	next := current
	receipt, err := fn(&next)
	if err != nil {
		return current, nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET tokens_claimed=?, is_active=? WHERE event_key=?`,
		int64(next.TokensClaimed), next.IsActive, key); err != nil {
		return current, nil, fmt.Errorf("update event: %w", err)
	}
	if receipt != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO claim_receipts(receipt_id, event_key, claimer, sequence, claimed_at)
			VALUES (?,?,?,?,?)`,
			receipt.ID, receipt.EventKey, string(receipt.Claimer), int64(receipt.Sequence), receipt.ClaimedAt.UnixNano()); err != nil {
			return current, nil, fmt.Errorf("insert receipt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return current, nil, err
	}
	return next, receipt, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (ledger.EventRecord, error) {
	return scanSQLiteEvent(s.db.QueryRowContext(ctx, sqliteSelectEvent, key))
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Creator != "" {
		where = append(where, "creator=?")
		args = append(args, string(f.Creator))
	}
	if f.ActiveOnly {
		where = append(where, "is_active=1")
	}
	q := `SELECT event_key, creator, name, description, token_supply, tokens_claimed, is_active, created_at FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, event_key ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                       Entry
			creator, name, desc     string
			supply, claimed, unixTS int64
		)
		if err := rows.Scan(&e.Key, &creator, &name, &desc, &supply, &claimed, &e.Record.IsActive, &unixTS); err != nil {
			return nil, err
		}
		e.Record.CreatedAt = time.Unix(unixTS, 0)
		fillRecord(&e.Record, creator, name, desc, supply, claimed)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Receipts(ctx context.Context, holder ledger.Identity) ([]Receipt, error) {
	return s.queryReceipts(ctx, `
		SELECT receipt_id, event_key, claimer, sequence, claimed_at
		FROM claim_receipts
		WHERE claimer=?
		ORDER BY claimed_at ASC, sequence ASC`, string(holder))
}

func (s *SQLiteStore) ReceiptsBetween(ctx context.Context, from, to time.Time) ([]Receipt, error) {
	return s.queryReceipts(ctx, `
		SELECT receipt_id, event_key, claimer, sequence, claimed_at
		FROM claim_receipts
		WHERE claimed_at >= ? AND claimed_at < ?
		ORDER BY claimed_at ASC, sequence ASC`, from.UnixNano(), to.UnixNano())
}

func (s *SQLiteStore) queryReceipts(ctx context.Context, query string, args ...any) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var (
			r           Receipt
			claimer     string
			seq, unixNS int64
		)
		if err := rows.Scan(&r.ID, &r.EventKey, &claimer, &seq, &unixNS); err != nil {
			return nil, err
		}
		r.Claimer = ledger.Identity(claimer)
		r.Sequence = uint64(seq)
		r.ClaimedAt = time.Unix(0, unixNS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSQLiteEvent(row *sql.Row) (ledger.EventRecord, error) {
	var (
		rec                     ledger.EventRecord
		creator, name, desc     string
		supply, claimed, unixTS int64
	)
	err := row.Scan(&creator, &name, &desc, &supply, &claimed, &rec.IsActive, &unixTS)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.EventRecord{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.EventRecord{}, err
	}
	rec.CreatedAt = time.Unix(unixTS, 0)
	fillRecord(&rec, creator, name, desc, supply, claimed)
	return rec, nil
}
