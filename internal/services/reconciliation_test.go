package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/lock"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/reconcile"
)

func newReconciler(db *gorm.DB) *ReconciliationService {
	return NewReconciliationService(db, ReconcileOptions{Matcher: reconcile.DefaultConfig()})
}

func reload[T any](t *testing.T, db *gorm.DB, id string) *T {
	t.Helper()
	var v T
	require.NoError(t, db.First(&v, "id = ?", id).Error)
	return &v
}

func TestReconcile_AppliesMatch(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, acct, "Acme")
	inv := seedInvoice(t, db, &models.Invoice{
		UserID: acct, ClientID: client.ID, Status: models.InvoiceStatusSent,
		Total: 150.00, DueDate: ptr(day(2024, 3, 12)),
	})
	tx := seedTransaction(t, db, acct, 150.00, day(2024, 3, 10))

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 2, res.Matches[0].DateDiffDays)
	assert.Equal(t, 0.9, res.Matches[0].Confidence)

	gotTx := reload[models.BankTransaction](t, db, tx.ID)
	assert.Equal(t, models.TransactionStatusMatched, gotTx.Status)
	require.NotNil(t, gotTx.MatchedInvoiceID)
	assert.Equal(t, inv.ID, *gotTx.MatchedInvoiceID)

	gotInv := reload[models.Invoice](t, db, inv.ID)
	assert.Equal(t, models.InvoiceStatusPaid, gotInv.Status)
}

func TestReconcile_AmountMismatchLeavesRecords(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 200.00, DueDate: ptr(day(2024, 3, 12)),
	})
	tx := seedTransaction(t, db, acct, 150.00, day(2024, 3, 12))

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, models.TransactionStatusPending, reload[models.BankTransaction](t, db, tx.ID).Status)
	assert.Nil(t, reload[models.BankTransaction](t, db, tx.ID).MatchedInvoiceID)
	assert.Equal(t, models.InvoiceStatusSent, reload[models.Invoice](t, db, inv.ID).Status)
}

func TestReconcile_OutsideDateWindow(t *testing.T) {
	db := newTestDB(t)
	seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 99.00, DueDate: ptr(day(2024, 3, 1)),
	})
	seedTransaction(t, db, acct, 99.00, day(2024, 3, 9))

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Equal(t, 0, res.Applied)
}

func TestReconcile_EachRecordMatchedOnce(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusOverdue, Total: 500, DueDate: ptr(day(2024, 5, 1)),
	})
	near := seedTransaction(t, db, acct, 500, day(2024, 5, 2))
	far := seedTransaction(t, db, acct, 500, day(2024, 5, 6))

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, models.TransactionStatusMatched, reload[models.BankTransaction](t, db, near.ID).Status)
	assert.Equal(t, models.TransactionStatusPending, reload[models.BankTransaction](t, db, far.ID).Status)
	assert.Equal(t, models.InvoiceStatusPaid, reload[models.Invoice](t, db, inv.ID).Status)
}

func TestReconcile_RepeatRunIsNoop(t *testing.T) {
	db := newTestDB(t)
	seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 10, DueDate: ptr(day(2024, 1, 10)),
	})
	seedTransaction(t, db, acct, 10, day(2024, 1, 10))
	svc := newReconciler(db)

	first, err := svc.Run(context.Background(), acct)
	require.NoError(t, err)
	require.Equal(t, 1, first.Applied)

	second, err := svc.Run(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Candidates)
	assert.Equal(t, 0, second.Applied)
}

func TestReconcile_StaleInvoiceSkippedAndRolledBack(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 10, DueDate: ptr(day(2024, 1, 10)),
	})
	tx := seedTransaction(t, db, acct, 10, day(2024, 1, 10))
	svc := newReconciler(db)

	// another writer voids the invoice after the matcher read it
	candidate := reconcile.Candidate{Transaction: tx, Invoice: inv}
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("status", models.InvoiceStatusVoid).Error)

	err := svc.applyMatch(context.Background(), acct, candidate)

	assert.True(t, errors.Is(err, errStale))
	assert.Equal(t, models.TransactionStatusPending, reload[models.BankTransaction](t, db, tx.ID).Status,
		"transaction update must roll back with the invoice guard")
}

func TestReconcile_ApplyFailureContinues(t *testing.T) {
	db := newTestDB(t)
	good := seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 120, DueDate: ptr(day(2024, 6, 1)),
	})
	bad := seedInvoice(t, db, &models.Invoice{
		UserID: acct, Status: models.InvoiceStatusSent, Total: 80, DueDate: ptr(day(2024, 6, 1)),
	})
	goodTx := seedTransaction(t, db, acct, 120, day(2024, 6, 2))
	badTx := seedTransaction(t, db, acct, 80, day(2024, 6, 2))

	// the invoice write fails for one pair only
	require.NoError(t, db.Exec(fmt.Sprintf(`CREATE TRIGGER block_invoice BEFORE UPDATE ON invoices
		WHEN OLD.id = '%s' BEGIN SELECT RAISE(ABORT, 'invoice locked'); END`, bad.ID)).Error)

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, good.ID, res.Matches[0].InvoiceID)

	assert.Equal(t, models.InvoiceStatusPaid, reload[models.Invoice](t, db, good.ID).Status)
	assert.Equal(t, models.TransactionStatusMatched, reload[models.BankTransaction](t, db, goodTx.ID).Status)
	assert.Equal(t, models.InvoiceStatusSent, reload[models.Invoice](t, db, bad.ID).Status)
	gotBadTx := reload[models.BankTransaction](t, db, badTx.ID)
	assert.Equal(t, models.TransactionStatusPending, gotBadTx.Status)
	assert.Nil(t, gotBadTx.MatchedInvoiceID)
}

func TestReconcile_IgnoresOtherAccounts(t *testing.T) {
	db := newTestDB(t)
	theirs := seedInvoice(t, db, &models.Invoice{
		UserID: otherAcct, Status: models.InvoiceStatusSent, Total: 42, DueDate: ptr(day(2024, 2, 1)),
	})
	mine := seedTransaction(t, db, acct, 42, day(2024, 2, 1))

	res, err := newReconciler(db).Run(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, models.InvoiceStatusSent, reload[models.Invoice](t, db, theirs.ID).Status)
	assert.Equal(t, models.TransactionStatusPending, reload[models.BankTransaction](t, db, mine.ID).Status)
}

func TestReconcile_ReadFailureIsDataAccessError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "bank_transactions"`).
		WillReturnError(errors.New("connection refused"))

	res, err := newReconciler(db).Run(context.Background(), acct)

	assert.Nil(t, res)
	assert.True(t, apperr.IsDataAccess(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no writes may follow a failed read")
}

func TestReconcile_LockHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := lock.NewRedis(client, "test:", time.Minute)
	release, ok, err := locker.Acquire(context.Background(), "reconcile:"+acct)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	db := newTestDB(t)
	svc := NewReconciliationService(db, ReconcileOptions{Matcher: reconcile.DefaultConfig(), Locker: locker})

	_, err = svc.Run(context.Background(), acct)
	assert.ErrorIs(t, err, apperr.ErrLocked)
}

func TestReconcile_RunAll(t *testing.T) {
	db := newTestDB(t)
	for _, a := range []string{acct, otherAcct} {
		seedInvoice(t, db, &models.Invoice{
			UserID: a, Status: models.InvoiceStatusSent, Total: 75, DueDate: ptr(day(2024, 4, 1)),
		})
		seedTransaction(t, db, a, 75, day(2024, 4, 3))
	}

	batch, err := newReconciler(db).RunAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, batch.Accounts)
	assert.Equal(t, 0, batch.Failed)
	require.Len(t, batch.Results, 2)
	for _, r := range batch.Results {
		assert.Equal(t, 1, r.Applied, r.AccountID)
	}
}
