// Package service runs ledger transitions against a store and emits the
// success notifications a host is expected to publish.
package service

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

// Ledger binds the record state machine to storage, a clock and a logger.
type Ledger struct {
	st     store.Store
	now    func() time.Time
	logger *slog.Logger
	newKey func() string
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for notifications.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		st:     st,
		now:    time.Now,
		logger: slog.Default(),
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxKeyLen bounds caller-chosen event keys. Generated keys are UUIDs.
const MaxKeyLen = 64

// keyPattern keeps keys addressable as a single URL path segment.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidKey reports whether key may name an event.
func ValidKey(key string) bool {
	return len(key) <= MaxKeyLen && keyPattern.MatchString(key)
}

// CreateEvent initializes a record under key, or under a fresh key when key
// is empty. A key that already holds a record fails with ErrAllocationFailed.
func (l *Ledger) CreateEvent(ctx context.Context, creator ledger.Identity, key, name, description string, supply uint64) (store.Entry, error) {
	if key != "" && !ValidKey(key) {
		return store.Entry{}, ledger.InvalidArgument("event key must be 1-%d characters of [A-Za-z0-9_-]", MaxKeyLen)
	}
	rec, err := ledger.Initialize(creator, name, description, supply, l.now())
	if err != nil {
		return store.Entry{}, err
	}
	if key == "" {
		key = l.newKey()
	}
	if err := l.st.Create(ctx, key, rec); err != nil {
		return store.Entry{}, err
	}
	l.logger.InfoContext(ctx, "event initialized",
		"event_key", key, "name", string(rec.Name), "creator", string(creator), "token_supply", rec.TokenSupply)
	return store.Entry{Key: key, Record: rec}, nil
}

// Claim hands one unit of key's supply to caller.
func (l *Ledger) Claim(ctx context.Context, key string, caller ledger.Identity) (ledger.EventRecord, store.Receipt, error) {
	rec, receipt, err := l.st.Update(ctx, key, func(rec *ledger.EventRecord) (*store.Receipt, error) {
		seq, err := rec.Claim(caller)
		if err != nil {
			return nil, err
		}
		return &store.Receipt{
			ID:        uuid.NewString(),
			EventKey:  key,
			Claimer:   caller,
			Sequence:  seq,
			ClaimedAt: l.now().UTC(),
		}, nil
	})
	if err != nil {
		return rec, store.Receipt{}, err
	}
	l.logger.InfoContext(ctx, "token claimed",
		"event_key", key, "claimer", string(caller), "tokens_claimed", rec.TokensClaimed, "token_supply", rec.TokenSupply)
	return rec, *receipt, nil
}

// Deactivate closes key. Only the creator may do so; repeating it succeeds.
func (l *Ledger) Deactivate(ctx context.Context, key string, caller ledger.Identity) (ledger.EventRecord, error) {
	rec, _, err := l.st.Update(ctx, key, func(rec *ledger.EventRecord) (*store.Receipt, error) {
		return nil, rec.Deactivate(caller)
	})
	if err != nil {
		return rec, err
	}
	l.logger.InfoContext(ctx, "event deactivated", "event_key", key, "name", string(rec.Name))
	return rec, nil
}

func (l *Ledger) Get(ctx context.Context, key string) (ledger.EventRecord, error) {
	return l.st.Get(ctx, key)
}

func (l *Ledger) List(ctx context.Context, f store.Filter) ([]store.Entry, error) {
	return l.st.List(ctx, f)
}

// Holdings summarizes the receipts held by one identity.
type Holdings struct {
	Receipts     []store.Receipt `json:"receipts"`
	TotalTokens  int             `json:"total_tokens"`
	UniqueEvents int             `json:"unique_events"`
	Oldest       *time.Time      `json:"oldest,omitempty"`
	Newest       *time.Time      `json:"newest,omitempty"`
}

func (l *Ledger) Holdings(ctx context.Context, holder ledger.Identity) (Holdings, error) {
	receipts, err := l.st.Receipts(ctx, holder)
	if err != nil {
		return Holdings{}, err
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].ClaimedAt.Before(receipts[j].ClaimedAt)
	})

	h := Holdings{Receipts: receipts, TotalTokens: len(receipts)}
	if h.Receipts == nil {
		h.Receipts = []store.Receipt{}
	}
	events := map[string]struct{}{}
	for _, r := range receipts {
		events[r.EventKey] = struct{}{}
	}
	h.UniqueEvents = len(events)
	if len(receipts) > 0 {
		oldest, newest := receipts[0].ClaimedAt, receipts[len(receipts)-1].ClaimedAt
		h.Oldest, h.Newest = &oldest, &newest
	}
	return h, nil
}

// EventClaims is the claim count of one event inside a metrics window.
type EventClaims struct {
	EventKey string `json:"event_key"`
	Claims   int    `json:"claims"`
}

// DayClaims is the claim count of one UTC calendar day.
type DayClaims struct {
	Day    string `json:"day"`
	Claims int    `json:"claims"`
}

// ClaimMetrics aggregates receipts claimed in [From, To).
type ClaimMetrics struct {
	From        time.Time     `json:"from"`
	To          time.Time     `json:"to"`
	EventKey    string        `json:"event_key,omitempty"`
	TotalClaims int           `json:"total_claims"`
	PerEvent    []EventClaims `json:"per_event"`
	PerDay      []DayClaims   `json:"per_day"`
}

// ClaimMetrics counts claims per event and per UTC day over the half-open
// window [from, to). A non-empty eventKey narrows the count to one event.
func (l *Ledger) ClaimMetrics(ctx context.Context, from, to time.Time, eventKey string) (ClaimMetrics, error) {
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return ClaimMetrics{}, ledger.InvalidArgument("from must be before to")
	}

	receipts, err := l.st.ReceiptsBetween(ctx, from, to)
	if err != nil {
		return ClaimMetrics{}, err
	}

	m := ClaimMetrics{From: from, To: to, EventKey: eventKey, PerEvent: []EventClaims{}, PerDay: []DayClaims{}}
	perEvent := map[string]int{}
	perDay := map[string]int{}
	for _, r := range receipts {
		if eventKey != "" && r.EventKey != eventKey {
			continue
		}
		m.TotalClaims++
		perEvent[r.EventKey]++
		perDay[r.ClaimedAt.UTC().Format(time.DateOnly)]++
	}

	for k, n := range perEvent {
		m.PerEvent = append(m.PerEvent, EventClaims{EventKey: k, Claims: n})
	}
	sort.Slice(m.PerEvent, func(i, j int) bool {
		if m.PerEvent[i].Claims != m.PerEvent[j].Claims {
			return m.PerEvent[i].Claims > m.PerEvent[j].Claims
		}
		return m.PerEvent[i].EventKey < m.PerEvent[j].EventKey
	})
	for d, n := range perDay {
		m.PerDay = append(m.PerDay, DayClaims{Day: d, Claims: n})
	}
	sort.Slice(m.PerDay, func(i, j int) bool { return m.PerDay[i].Day < m.PerDay[j].Day })
	return m, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.st.Ping(ctx)
}
