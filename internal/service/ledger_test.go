package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLedger(t *testing.T) (*Ledger, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	clock := &fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(store.NewMemoryStore(),
		WithClock(clock.now),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)
	return l, &logs
}

func TestLedger_ScenarioA(t *testing.T) {
	l, logs := newTestLedger(t)
	ctx := context.Background()

	entry, err := l.CreateEvent(ctx, "C", "", "Conf2024", "...", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.Key)
	assert.Contains(t, logs.String(), `"msg":"event initialized"`)
	assert.Contains(t, logs.String(), `"name":"Conf2024"`)

	rec, receipt, err := l.Claim(ctx, entry.Key, "X")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.TokensClaimed)
	assert.Equal(t, ledger.Identity("X"), receipt.Claimer)
	assert.Contains(t, logs.String(), `"claimer":"X"`)

	rec, _, err = l.Claim(ctx, entry.Key, "Y")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.TokensClaimed)

	_, _, err = l.Claim(ctx, entry.Key, "Z")
	assert.ErrorIs(t, err, ledger.ErrNoTokensLeft)
}

func TestLedger_ScenarioC(t *testing.T) {
	l, logs := newTestLedger(t)
	ctx := context.Background()

	entry, err := l.CreateEvent(ctx, "C", "ev-c", "Meetup", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "ev-c", entry.Key)

	_, err = l.Deactivate(ctx, "ev-c", "D")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.NotContains(t, logs.String(), "event deactivated")

	rec, err := l.Deactivate(ctx, "ev-c", "C")
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
	assert.Contains(t, logs.String(), `"msg":"event deactivated"`)

	_, _, err = l.Claim(ctx, "ev-c", "X")
	assert.ErrorIs(t, err, ledger.ErrEventInactive)
}

func TestLedger_CreateEventErrors(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateEvent(ctx, "C", "dup", "a", "", 1)
	require.NoError(t, err)
	_, err = l.CreateEvent(ctx, "C", "dup", "b", "", 1)
	assert.ErrorIs(t, err, ledger.ErrAllocationFailed)

	long := make([]byte, ledger.MaxNameLen+1)
	for i := range long {
		long[i] = 'n'
	}
	_, err = l.CreateEvent(ctx, "C", "", string(long), "", 1)
	assert.ErrorIs(t, err, ledger.ErrFieldTooLong)

	_, err = l.Get(ctx, "dup")
	require.NoError(t, err)
}

func TestLedger_Holdings(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	h, err := l.Holdings(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 0, h.TotalTokens)
	assert.NotNil(t, h.Receipts)
	assert.Nil(t, h.Oldest)

	a, err := l.CreateEvent(ctx, "C", "a", "A", "", 5)
	require.NoError(t, err)
	b, err := l.CreateEvent(ctx, "C", "b", "B", "", 5)
	require.NoError(t, err)

	for _, key := range []string{a.Key, a.Key, b.Key} {
		_, _, err := l.Claim(ctx, key, "X")
		require.NoError(t, err)
	}

	h, err = l.Holdings(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 3, h.TotalTokens)
	assert.Equal(t, 2, h.UniqueEvents)
	require.NotNil(t, h.Oldest)
	require.NotNil(t, h.Newest)
	assert.True(t, h.Oldest.Before(*h.Newest))

	entries, err := l.List(ctx, store.Filter{Creator: "C"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLedger_CreateEventRejectsBadKey(t *testing.T) {
	l, logs := newTestLedger(t)
	ctx := context.Background()

	for _, key := range []string{"a/b", "has space", "café", strings.Repeat("k", MaxKeyLen+1)} {
		_, err := l.CreateEvent(ctx, "C", key, "n", "", 1)
		assert.ErrorIs(t, err, ledger.ErrInvalidArgument, key)
	}
	assert.NotContains(t, logs.String(), "event initialized")

	entries, err := l.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	entry, err := l.CreateEvent(ctx, "C", strings.Repeat("k", MaxKeyLen), "n", "", 1)
	require.NoError(t, err)
	_, err = l.Get(ctx, entry.Key)
	require.NoError(t, err)

	_, err = l.CreateEvent(ctx, "C", "Conf_2024-b", "", "", 0)
	require.NoError(t, err)
}

func TestLedger_ClaimMetrics(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	now := day1
	l := New(store.NewMemoryStore(), WithClock(func() time.Time { return now }))

	_, err := l.CreateEvent(ctx, "C", "a", "A", "", 10)
	require.NoError(t, err)
	_, err = l.CreateEvent(ctx, "C", "b", "B", "", 10)
	require.NoError(t, err)

	claimAt := func(at time.Time, key string) {
		t.Helper()
		now = at
		_, _, err := l.Claim(ctx, key, "X")
		require.NoError(t, err)
	}
	claimAt(day1, "a")
	claimAt(day1.Add(30*time.Minute), "b")
	claimAt(day1.Add(2*time.Hour), "a")
	claimAt(day1.Add(26*time.Hour), "a")

	m, err := l.ClaimMetrics(ctx, day1, day1.Add(26*time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, 3, m.TotalClaims)
	assert.Equal(t, []EventClaims{{EventKey: "a", Claims: 2}, {EventKey: "b", Claims: 1}}, m.PerEvent)
	assert.Equal(t, []DayClaims{{Day: "2024-05-01", Claims: 2}, {Day: "2024-05-02", Claims: 1}}, m.PerDay)

	m, err = l.ClaimMetrics(ctx, day1, day1.Add(48*time.Hour), "a")
	require.NoError(t, err)
	assert.Equal(t, 3, m.TotalClaims)
	assert.Equal(t, []EventClaims{{EventKey: "a", Claims: 3}}, m.PerEvent)

	m, err = l.ClaimMetrics(ctx, day1.Add(-48*time.Hour), day1, "")
	require.NoError(t, err)
	assert.Zero(t, m.TotalClaims)
	assert.NotNil(t, m.PerEvent)
	assert.NotNil(t, m.PerDay)

	_, err = l.ClaimMetrics(ctx, day1, day1, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}
