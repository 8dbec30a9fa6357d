package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

// ErrConflict is returned when a backend gave up waiting for exclusive access
// to a record. The record is unchanged.
var ErrConflict = errors.New("store: concurrent update conflict")

func errSlotOccupied(key string) error {
	return fmt.Errorf("slot %q already holds a record", key)
}

// Receipt is the side-channel record of one successful claim.
type Receipt struct {
	ID        string          `json:"id"`
	EventKey  string          `json:"event_key"`
	Claimer   ledger.Identity `json:"claimer"`
	Sequence  uint64          `json:"sequence"`
	ClaimedAt time.Time       `json:"claimed_at"`
}

// Entry pairs a record with its storage key.
type Entry struct {
	Key    string
	Record ledger.EventRecord
}

// Filter narrows List results. Zero value lists everything.
type Filter struct {
	Creator    ledger.Identity
	ActiveOnly bool
}

func (f Filter) match(rec ledger.EventRecord) bool {
	if f.Creator != "" && rec.Creator != f.Creator {
		return false
	}
	if f.ActiveOnly && !rec.IsActive {
		return false
	}
	return true
}

// Mutation runs against the current record under exclusive access. It edits
// rec in place and may return a receipt to persist with the new state. A
// non-nil error aborts the transition and nothing is written.
type Mutation func(rec *ledger.EventRecord) (*Receipt, error)

// Store is the host storage for event records. Every backend guarantees that
// mutations against the same key never interleave.
type Store interface {
	// Create allocates key; an occupied key fails with ledger.ErrAllocationFailed.
	Create(ctx context.Context, key string, rec ledger.EventRecord) error
	// Update applies fn atomically and returns the persisted record.
	Update(ctx context.Context, key string, fn Mutation) (ledger.EventRecord, *Receipt, error)
	Get(ctx context.Context, key string) (ledger.EventRecord, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	Receipts(ctx context.Context, holder ledger.Identity) ([]Receipt, error)
	// ReceiptsBetween returns every receipt claimed in [from, to), oldest first.
	ReceiptsBetween(ctx context.Context, from, to time.Time) ([]Receipt, error)
	Ping(ctx context.Context) error
	Close() error
}

// sortReceipts orders by claim time, then by sequence, matching the SQL backends.
func sortReceipts(rs []Receipt) {
	sort.SliceStable(rs, func(i, j int) bool {
		ti, tj := rs[i].ClaimedAt, rs[j].ClaimedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return rs[i].Sequence < rs[j].Sequence
	})
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("token supply %d exceeds storage range", v)
	}
	return int64(v), nil
}

// fillRecord copies scanned SQL columns into rec. CreatedAt must already be set.
func fillRecord(rec *ledger.EventRecord, creator, name, desc string, supply, claimed int64) {
	rec.Creator = ledger.Identity(creator)
	rec.Name = ledger.Name(name)
	rec.Description = ledger.Description(desc)
	rec.TokenSupply = uint64(supply)
	rec.TokensClaimed = uint64(claimed)
	rec.CreatedAt = rec.CreatedAt.UTC()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
)
