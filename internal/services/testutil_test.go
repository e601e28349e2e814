package services

import (
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/billflow/internal/models"
)

const (
	acct      = "11111111-1111-1111-1111-111111111111"
	otherAcct = "22222222-2222-2222-2222-222222222222"
)

// newTestDB returns a migrated in-memory sqlite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatal(err)
	}
	return db
}

// newMockDB returns a gorm handle over sqlmock using the postgres dialect.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	return db, mock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func seedClient(t *testing.T, db *gorm.DB, accountID, name string) *models.Client {
	t.Helper()
	c := &models.Client{UserID: accountID, Name: name}
	if err := db.Create(c).Error; err != nil {
		t.Fatal(err)
	}
	return c
}

func seedInvoice(t *testing.T, db *gorm.DB, inv *models.Invoice) *models.Invoice {
	t.Helper()
	if inv.Number == "" {
		inv.Number = "INV-" + string(inv.Status)
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = day(2024, 1, 1)
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatal(err)
	}
	return inv
}

func seedTransaction(t *testing.T, db *gorm.DB, accountID string, amount float64, date time.Time) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{UserID: accountID, AccountID: "checking", Amount: amount, Date: date}
	if err := db.Create(tx).Error; err != nil {
		t.Fatal(err)
	}
	return tx
}
