package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

type memorySlot struct {
	mu  sync.Mutex
	rec ledger.EventRecord
}

// MemoryStore keeps records in process. Each record has its own mutex, so
// transitions on one key serialize while different keys proceed in parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	slots    map[string]*memorySlot
	receipts map[ledger.Identity][]Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:    map[string]*memorySlot{},
		receipts: map[ledger.Identity][]Receipt{},
	}
}

func (m *MemoryStore) Create(_ context.Context, key string, rec ledger.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[key]; ok {
		return ledger.AllocationError(errSlotOccupied(key))
	}
	m.slots[key] = &memorySlot{rec: rec}
	return nil
}

func (m *MemoryStore) slot(key string) (*memorySlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[key]
	return s, ok
}

func (m *MemoryStore) Update(_ context.Context, key string, fn Mutation) (ledger.EventRecord, *Receipt, error) {
	s, ok := m.slot(key)
	if !ok {
		return ledger.EventRecord{}, nil, ledger.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.rec
	receipt, err := fn(&next)
	if err != nil {
		return s.rec, nil, err
	}
	s.rec = next
	if receipt != nil {
		m.mu.Lock()
		m.receipts[receipt.Claimer] = append(m.receipts[receipt.Claimer], *receipt)
		m.mu.Unlock()
	}
	return next, receipt, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (ledger.EventRecord, error) {
	s, ok := m.slot(key)
	if !ok {
		return ledger.EventRecord{}, ledger.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.slots))
	slots := make(map[string]*memorySlot, len(m.slots))
	for k, s := range m.slots {
		keys = append(keys, k)
		slots[k] = s
	}
	m.mu.RUnlock()

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		s := slots[k]
		s.mu.Lock()
		rec := s.rec
		s.mu.Unlock()
		if f.match(rec) {
			out = append(out, Entry{Key: k, Record: rec})
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryStore) Receipts(_ context.Context, holder ledger.Identity) ([]Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Receipt(nil), m.receipts[holder]...), nil
}

func (m *MemoryStore) ReceiptsBetween(_ context.Context, from, to time.Time) ([]Receipt, error) {
	m.mu.RLock()
	var out []Receipt
	for _, rs := range m.receipts {
		for _, r := range rs {
			if !r.ClaimedAt.Before(from) && r.ClaimedAt.Before(to) {
				out = append(out, r)
			}
		}
	}
	m.mu.RUnlock()
	sortReceipts(out)
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// sortEntries orders newest first, then by key, matching the SQL backends.
func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		ti, tj := es[i].Record.CreatedAt, es[j].Record.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return es[i].Key < es[j].Key
	})
}
