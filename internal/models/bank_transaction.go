package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionStatus is the reconciliation status of a bank transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusMatched TransactionStatus = "matched"
)

// BankTransaction is an imported bank deposit awaiting reconciliation.
type BankTransaction struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// UserID is the owning account (tenant boundary)
	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`

	// AccountID names the bank account the line was imported from
	AccountID string `gorm:"not null" json:"account_id"`

	Amount      float64   `gorm:"not null" json:"amount"`
	Date        time.Time `gorm:"type:date;not null" json:"date"`
	Description *string   `json:"description,omitempty"`
	Balance     *float64  `json:"balance,omitempty"`

	Status           TransactionStatus `gorm:"size:20;default:'pending';index" json:"status"`
	MatchedInvoiceID *string           `gorm:"type:uuid" json:"matched_invoice_id,omitempty"`
}

func (t *BankTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	if t.Status == "" {
		t.Status = TransactionStatusPending
	}
	return nil
}

// GetAccountID implements the Owned interface.
func (t *BankTransaction) GetAccountID() string {
	return t.UserID
}
