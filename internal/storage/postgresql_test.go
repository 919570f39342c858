package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/hr-storefront/internal/models"
)

func TestStorage_PaymentLifecycle(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	p := NewTestPayment()
	id, err := s.SavePayment(ctx, p)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.PaymentByReference(ctx, p.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.SyncPending, got.SyncStatus)
	assert.Equal(t, p.Total, got.Total)
	assert.Equal(t, p.SessionID, got.SessionID)

	require.NoError(t, s.MarkSyncFailed(ctx, p.PaymentReference, "backend unavailable"))
	got, err = s.PaymentByReference(ctx, p.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, got.SyncStatus)
	assert.Equal(t, "backend unavailable", got.SyncError)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, got.NextAttemptAt.After(got.UpdatedAt), "failed payment is deferred")

	require.NoError(t, s.MarkSynced(ctx, p.PaymentReference, "INV-9"))
	got, err = s.PaymentByReference(ctx, p.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOK, got.SyncStatus)
	assert.Equal(t, "INV-9", got.InvoiceID)
	assert.Empty(t, got.SyncError)
}

func TestStorage_SavePaymentDuplicate(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	p := NewTestPayment()
	_, err := s.SavePayment(ctx, p)
	require.NoError(t, err)

	_, err = s.SavePayment(ctx, p)
	require.ErrorIs(t, err, ErrPaymentExists)
}

func TestStorage_NotFound(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	_, err := s.PaymentByReference(ctx, "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)

	err = s.MarkSynced(ctx, "missing", "INV")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestStorage_ListUnsynced(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	pending := NewTestPayment()
	failed := NewTestPayment()
	synced := NewTestPayment()
	for _, p := range []models.Payment{pending, failed, synced} {
		_, err := s.SavePayment(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, s.MarkSyncFailed(ctx, failed.PaymentReference, "timeout"))
	require.NoError(t, s.MarkSynced(ctx, synced.PaymentReference, "INV-1"))

	// повтор после неудачи ещё не наступил, свежий pending не старше окна
	list, err := s.ListUnsynced(ctx, time.Now().Add(-time.Hour), 10, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListUnsynced(ctx, time.Now().Add(time.Minute), 10, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.PaymentReference, list[0].PaymentReference)

	_, err = s.DB.ExecContext(ctx,
		`UPDATE payments SET next_attempt_at = NOW() - INTERVAL '1 minute' WHERE payment_reference = $1`,
		failed.PaymentReference)
	require.NoError(t, err)

	list, err = s.ListUnsynced(ctx, time.Now().Add(time.Minute), 10, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = s.ListUnsynced(ctx, time.Now().Add(time.Minute), 10, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListUnsynced(ctx, time.Now().Add(time.Minute), 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "payment out of attempts is not listed")
	assert.Equal(t, pending.PaymentReference, list[0].PaymentReference)
}

func TestStorage_ListUnsyncedFailuresDoNotBlockNewerPayments(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	const batch = 3
	for i := 0; i < batch; i++ {
		p := NewTestPayment()
		_, err := s.SavePayment(ctx, p)
		require.NoError(t, err)
		require.NoError(t, s.MarkSyncFailed(ctx, p.PaymentReference, "backend returned 422"))
	}
	// отказы уже созрели для повтора, но их больше, чем помещается в пачку
	_, err := s.DB.ExecContext(ctx,
		`UPDATE payments SET next_attempt_at = NOW() - INTERVAL '1 hour', attempts = 5`)
	require.NoError(t, err)

	newer := NewTestPayment()
	_, err = s.SavePayment(ctx, newer)
	require.NoError(t, err)
	require.NoError(t, s.MarkSyncFailed(ctx, newer.PaymentReference, "timeout"))
	_, err = s.DB.ExecContext(ctx,
		`UPDATE payments SET next_attempt_at = NOW() - INTERVAL '2 hours' WHERE payment_reference = $1`,
		newer.PaymentReference)
	require.NoError(t, err)

	list, err := s.ListUnsynced(ctx, time.Now(), 10, batch)
	require.NoError(t, err)
	require.Len(t, list, batch)
	assert.Equal(t, newer.PaymentReference, list[0].PaymentReference)

	list, err = s.ListUnsynced(ctx, time.Now(), 5, batch)
	require.NoError(t, err)
	require.Len(t, list, 1, "exhausted payments leave the batch")
	assert.Equal(t, newer.PaymentReference, list[0].PaymentReference)
}
