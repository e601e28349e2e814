package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/health"
	"github.com/diewo77/billflow/internal/models"
)

func newHealth(db *gorm.DB, now time.Time) *HealthService {
	svc := NewHealthService(db, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestHealth_ClientScore(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, acct, "Acme")
	seedInvoice(t, db, &models.Invoice{UserID: acct, ClientID: client.ID, Status: models.InvoiceStatusPaid, Total: 600})
	seedInvoice(t, db, &models.Invoice{
		UserID: acct, ClientID: client.ID, Status: models.InvoiceStatusSent, Total: 400,
		DueDate: ptr(day(2024, 3, 1)),
	})

	got, err := newHealth(db, day(2024, 3, 15)).ClientScore(context.Background(), acct, client.ID)

	require.NoError(t, err)
	// 100 - 15 for the late invoice, then -(1 - 0.6) * 50
	assert.Equal(t, 65, got.Value)
	assert.Equal(t, health.LabelGood, got.Label)
	assert.Equal(t, 1, got.OverdueCount)
	assert.Equal(t, "Acme", got.Name)
}

func TestHealth_ClientWithoutInvoicesIsPerfect(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, acct, "New Co")

	got, err := newHealth(db, day(2024, 3, 15)).ClientScore(context.Background(), acct, client.ID)

	require.NoError(t, err)
	assert.Equal(t, 100, got.Value)
	assert.Equal(t, health.LabelExcellent, got.Label)
	assert.Equal(t, 1.0, got.PaymentRatio)
}

func TestHealth_ClientOfOtherAccount(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db, otherAcct, "Theirs")

	_, err := newHealth(db, day(2024, 3, 15)).ClientScore(context.Background(), acct, client.ID)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHealth_AccountScore(t *testing.T) {
	db := newTestDB(t)
	a := seedClient(t, db, acct, "A")
	b := seedClient(t, db, acct, "B")
	seedInvoice(t, db, &models.Invoice{UserID: acct, ClientID: a.ID, Status: models.InvoiceStatusPaid, Total: 500})
	seedInvoice(t, db, &models.Invoice{UserID: acct, ClientID: b.ID, Status: models.InvoiceStatusOverdue, Total: 500})
	seedInvoice(t, db, &models.Invoice{UserID: otherAcct, ClientID: "x", Status: models.InvoiceStatusOverdue, Total: 9000})

	got, err := newHealth(db, day(2024, 3, 15)).AccountScore(context.Background(), acct)

	require.NoError(t, err)
	// 85 - 25
	assert.Equal(t, 60, got.Value)
	assert.Equal(t, 1000.0, got.TotalInvoiced)
}

func TestHealth_RefreshAllCachesScores(t *testing.T) {
	db := newTestDB(t)
	good := seedClient(t, db, acct, "Good")
	late := seedClient(t, db, acct, "Late")
	seedInvoice(t, db, &models.Invoice{UserID: acct, ClientID: good.ID, Status: models.InvoiceStatusPaid, Total: 100})
	for i := 0; i < 4; i++ {
		seedInvoice(t, db, &models.Invoice{UserID: acct, ClientID: late.ID, Status: models.InvoiceStatusOverdue, Total: 100})
	}

	res, err := newHealth(db, day(2024, 3, 15)).RefreshAll(context.Background(), acct)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Clients)
	assert.Equal(t, 2, res.Refreshed)
	assert.Zero(t, res.Failed)

	gotGood := reload[models.Client](t, db, good.ID)
	require.NotNil(t, gotGood.HealthScore)
	assert.Equal(t, 100, *gotGood.HealthScore)

	// floor of 50, then nothing paid
	gotLate := reload[models.Client](t, db, late.ID)
	require.NotNil(t, gotLate.HealthScore)
	assert.Equal(t, 0, *gotLate.HealthScore)
}

func TestHealth_RefreshAccounts(t *testing.T) {
	db := newTestDB(t)
	seedClient(t, db, acct, "A")
	seedClient(t, db, otherAcct, "B")

	n, err := newHealth(db, day(2024, 3, 15)).RefreshAccounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHealth_ReadFailureIsDataAccessError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WillReturnError(errors.New("connection refused"))

	_, err := NewHealthService(db, nil).RefreshAll(context.Background(), acct)

	assert.True(t, apperr.IsDataAccess(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
