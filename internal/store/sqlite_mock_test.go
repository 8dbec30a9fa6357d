package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
)

var eventColumns = []string{"creator", "name", "description", "token_supply", "tokens_claimed", "is_active", "created_at"}

func TestSQLiteStore_RejectedMutationRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT creator, name, description")).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("C", "Conf2024", "", int64(2), int64(2), int64(1), testNow.Unix()))
	mock.ExpectRollback()

	got, receipt, err := st.Update(ctx, "ev-1", claimMutation("ev-1", "Z"))
	assert.ErrorIs(t, err, ledger.ErrNoTokensLeft)
	assert.Nil(t, receipt)
	assert.Equal(t, uint64(2), got.TokensClaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ReceiptFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT creator, name, description")).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("C", "Conf2024", "", int64(2), int64(0), int64(1), testNow.Unix()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET tokens_claimed=?, is_active=? WHERE event_key=?")).
		WithArgs(int64(1), true, "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO claim_receipts")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	got, _, err := st.Update(ctx, "ev-1", claimMutation("ev-1", "X"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert receipt")
	assert.Equal(t, uint64(0), got.TokensClaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CreateOccupiedSlot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteStore(db)
	rec, err := ledger.Initialize("C", "n", "", 1, testNow)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs("ev-1", "C", "n", "", int64(1), int64(0), true, testNow.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = st.Create(context.Background(), "ev-1", rec)
	assert.ErrorIs(t, err, ledger.ErrAllocationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CreateSupplyOutOfRange(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteStore(db)
	rec, err := ledger.Initialize("C", "n", "", 1<<63, testNow)
	require.NoError(t, err)

	err = st.Create(context.Background(), "ev-1", rec)
	assert.ErrorIs(t, err, ledger.ErrAllocationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ReceiptsBetweenBindsHalfOpenWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteStore(db)
	from, to := testNow, testNow.Add(24*time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE claimed_at >= ? AND claimed_at < ?")).
		WithArgs(from.UnixNano(), to.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"receipt_id", "event_key", "claimer", "sequence", "claimed_at"}).
			AddRow("r-1", "ev-1", "X", int64(1), from.UnixNano()))

	got, err := st.ReceiptsBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.Identity("X"), got[0].Claimer)
	assert.True(t, from.Equal(got[0].ClaimedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
