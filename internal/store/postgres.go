package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for event records.
// Row locks (SELECT ... FOR UPDATE) give each transition exclusive access to its record.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// Create inserts a new record. An existing row for key means the slot is
// taken, which surfaces as ledger.ErrAllocationFailed.
func (p *PostgresStore) Create(ctx context.Context, key string, rec ledger.EventRecord) error {
	supply, err := toInt64(rec.TokenSupply)
	if err != nil {
		return ledger.AllocationError(err)
	}

	// RETURNING 1 only when inserted; an occupied key returns no rows.
	var one int
	err = p.pool.QueryRow(ctx, `
		INSERT INTO events(event_key, creator, name, description, token_supply, tokens_claimed, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (event_key) DO NOTHING
		RETURNING 1
	`, key, string(rec.Creator), string(rec.Name), string(rec.Description),
		supply, int64(rec.TokensClaimed), rec.IsActive, rec.CreatedAt).Scan(&one)

	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.AllocationError(errSlotOccupied(key))
	}
	if err != nil {
		return ledger.AllocationError(err)
	}
	return nil
}

const pgSelectEvent = `
	SELECT creator, name, description, token_supply, tokens_claimed, is_active, created_at
	FROM events
	WHERE event_key=$1`

// Update locks the row for the duration of fn so concurrent transitions on
// the same key queue behind each other.
func (p *PostgresStore) Update(ctx context.Context, key string, fn Mutation) (ledger.EventRecord, *Receipt, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return ledger.EventRecord{}, nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanEvent(tx.QueryRow(ctx, pgSelectEvent+` FOR UPDATE`, key))
	if err != nil {
		return ledger.EventRecord{}, nil, err
	}

	next := current
	receipt, err := fn(&next)
	if err != nil {
		return current, nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE events
		SET tokens_claimed=$2, is_active=$3
		WHERE event_key=$1
	`, key, int64(next.TokensClaimed), next.IsActive); err != nil {
		return current, nil, fmt.Errorf("update event: %w", err)
	}

	if receipt != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO claim_receipts(receipt_id, event_key, claimer, sequence, claimed_at)
			VALUES ($1,$2,$3,$4,$5)
		`, receipt.ID, receipt.EventKey, string(receipt.Claimer), int64(receipt.Sequence), receipt.ClaimedAt); err != nil {
			return current, nil, fmt.Errorf("insert receipt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return current, nil, err
	}
	return next, receipt, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (ledger.EventRecord, error) {
	return scanEvent(p.pool.QueryRow(ctx, pgSelectEvent, key))
}

// List returns records newest first.
func (p *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Creator != "" {
		args = append(args, string(f.Creator))
		where = append(where, fmt.Sprintf("creator=$%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	q := `SELECT event_key, creator, name, description, token_supply, tokens_claimed, is_active, created_at FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, event_key ASC"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                   Entry
			creator, name, desc string
			supply, claimed     int64
		)
		if err := rows.Scan(&e.Key, &creator, &name, &desc, &supply, &claimed, &e.Record.IsActive, &e.Record.CreatedAt); err != nil {
			return nil, err
		}
		fillRecord(&e.Record, creator, name, desc, supply, claimed)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Receipts returns claims held by holder in claim order.
func (p *PostgresStore) Receipts(ctx context.Context, holder ledger.Identity) ([]Receipt, error) {
	return p.queryReceipts(ctx, `
		SELECT receipt_id, event_key, claimer, sequence, claimed_at
		FROM claim_receipts
		WHERE claimer=$1
		ORDER BY claimed_at ASC, sequence ASC
	`, string(holder))
}

// ReceiptsBetween returns claims in the half-open window [from, to).
func (p *PostgresStore) ReceiptsBetween(ctx context.Context, from, to time.Time) ([]Receipt, error) {
	return p.queryReceipts(ctx, `
		SELECT receipt_id, event_key, claimer, sequence, claimed_at
		FROM claim_receipts
		WHERE claimed_at >= $1 AND claimed_at < $2
		ORDER BY claimed_at ASC, sequence ASC
	`, from.UTC(), to.UTC())
}

func (p *PostgresStore) queryReceipts(ctx context.Context, query string, args ...any) ([]Receipt, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var (
			r       Receipt
			claimer string
			seq     int64
		)
		if err := rows.Scan(&r.ID, &r.EventKey, &claimer, &seq, &r.ClaimedAt); err != nil {
			return nil, err
		}
		r.Claimer = ledger.Identity(claimer)
		r.Sequence = uint64(seq)
		r.ClaimedAt = r.ClaimedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (ledger.EventRecord, error) {
	var (
		rec                 ledger.EventRecord
		creator, name, desc string
		supply, claimed     int64
	)
	err := row.Scan(&creator, &name, &desc, &supply, &claimed, &rec.IsActive, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.EventRecord{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.EventRecord{}, err
	}
	fillRecord(&rec, creator, name, desc, supply, claimed)
	return rec, nil
}
