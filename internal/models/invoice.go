package models

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// OpenInvoiceStatuses are the statuses a bank deposit can settle.
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceStatusSent, InvoiceStatusOverdue}

// Invoice represents a billing invoice.
// Implements the Owned interface for account-scoped authorization.
type Invoice struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owning account (tenant boundary)
	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`

	ClientID string  `gorm:"type:uuid;index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	Number string        `gorm:"not null" json:"number"`
	Status InvoiceStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	IssueDate time.Time  `gorm:"type:date;not null" json:"issue_date"`
	DueDate   *time.Time `gorm:"type:date" json:"due_date,omitempty"`

	Subtotal float64 `gorm:"not null;default:0" json:"subtotal"`
	Tax      float64 `gorm:"not null;default:0" json:"tax"`
	Total    float64 `gorm:"not null;default:0" json:"total"`

	Notes *string `gorm:"type:text" json:"notes,omitempty"`

	Items []LineItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// GetAccountID implements the Owned interface.
func (i *Invoice) GetAccountID() string {
	return i.UserID
}

// IsOpen returns true if the invoice still awaits payment.
func (i *Invoice) IsOpen() bool {
	return i.Status == InvoiceStatusSent || i.Status == InvoiceStatusOverdue
}

// IsOverdueAt reports whether the invoice counts as overdue at the given instant:
// either flagged overdue, or sent with a due date strictly before now.
func (i *Invoice) IsOverdueAt(now time.Time) bool {
	if i.Status == InvoiceStatusOverdue {
		return true
	}
	return i.Status == InvoiceStatusSent && i.DueDate != nil && i.DueDate.Before(now)
}

// ComputeTotals sets Subtotal from the line items and Total = Subtotal + Tax.
// Tax is left as entered.
func (i *Invoice) ComputeTotals() {
	var subtotal float64
	for idx := range i.Items {
		subtotal += i.Items[idx].ComputeAmount()
	}
	i.Subtotal = subtotal
	i.Total = i.Subtotal + i.Tax
}

// LineItem represents a line on an invoice.
type LineItem struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID string `gorm:"type:uuid;index;not null" json:"invoice_id"`

	Description string  `gorm:"not null" json:"description"`
	Quantity    float64 `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"not null;default:0" json:"unit_price"`
	Amount      float64 `json:"amount"`

	// Position for ordering; not required to be contiguous
	Position int `gorm:"default:0" json:"position"`
}

func (LineItem) TableName() string { return "invoice_items" }

func (item *LineItem) BeforeCreate(*gorm.DB) error {
	assignID(&item.ID)
	return nil
}

// ComputeAmount sets and returns quantity * unit price.
func (item *LineItem) ComputeAmount() float64 {
	item.Amount = item.Quantity * item.UnitPrice
	return item.Amount
}
