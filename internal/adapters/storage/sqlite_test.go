package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/predictsync/internal/adapters/storage"
	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(handle, kind string, at time.Time) domain.PendingTransaction {
	return domain.PendingTransaction{
		Handle:      domain.TxHandle(handle),
		Kind:        kind,
		AccountID:   "0xabc",
		SubmittedAt: at,
		Status:      domain.TxStatusPending,
	}
}

func TestSQLiteJournal_SubmitAndFinal(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	id, err := db.RecordSubmitted(ctx, pending("0x01", "deposit", now.Add(-2*time.Second)), "100")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = db.RecordSubmitted(ctx, pending("0x02", "settle", now.Add(-time.Second)), "7")
	require.NoError(t, err)

	require.NoError(t, db.RecordFinal(ctx, "0x01", domain.TxStatusAccepted, ""))
	require.NoError(t, db.RecordFinal(ctx, "0x02", domain.TxStatusCanceled, "ERROR: Too early"))

	history, err := db.History(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 2)

	// más recientes primero
	assert.Equal(t, domain.TxHandle("0x02"), history[0].Handle)
	assert.Equal(t, domain.TxStatusCanceled, history[0].Status)
	assert.Equal(t, "ERROR: Too early", history[0].Error)
	require.NotNil(t, history[0].FinishedAt)

	assert.Equal(t, id, history[1].ID)
	assert.Equal(t, "deposit", history[1].Kind)
	assert.Equal(t, "100", history[1].Detail)
	assert.Equal(t, domain.TxStatusAccepted, history[1].Status)
	assert.WithinDuration(t, now.Add(-2*time.Second), history[1].SubmittedAt, time.Millisecond)
}

func TestSQLiteJournal_ResubmitKeepsID(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	first, err := db.RecordSubmitted(ctx, pending("0x01", "place", time.Now()), "BTC UP 10 60s")
	require.NoError(t, err)
	second, err := db.RecordSubmitted(ctx, pending("0x01", "place", time.Now()), "BTC UP 10 60s")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSQLiteJournal_FinalUnknownHandle(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = db.RecordFinal(context.Background(), "0xmissing", domain.TxStatusAccepted, "")
	assert.Error(t, err)
}

func TestSQLiteJournal_Settlements(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.RecordSettlement(ctx, domain.SettlementEvent{
		PredictionID: 3, Outcome: domain.OutcomeWon, Message: "WON: BTC", Rule: "leader.genvm_result.data",
		Handle: "0x09", At: now,
	}))

	got, err := db.Settlements(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].PredictionID)
	assert.Equal(t, domain.OutcomeWon, got[0].Outcome)
	assert.Equal(t, "leader.genvm_result.data", got[0].Rule)
}

func TestSQLiteJournal_HistoryEmptyRange(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	history, err := db.History(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, history)
}
