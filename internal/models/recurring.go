package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecurringState is the lifecycle state of a recurring invoice template.
type RecurringState string

const (
	RecurringStateDraft    RecurringState = "draft"
	RecurringStateActive   RecurringState = "active"
	RecurringStatePaused   RecurringState = "paused"
	RecurringStateCanceled RecurringState = "canceled"
)

// Frequency is how often a recurring template produces an invoice.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// RecurringInvoice is a blueprint that periodically produces concrete invoices.
type RecurringInvoice struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owning account (tenant boundary)
	UserID   string  `gorm:"type:uuid;index;not null" json:"user_id"`
	ClientID string  `gorm:"type:uuid;index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	TemplateNumber string    `gorm:"not null" json:"template_number"`
	Frequency      Frequency `gorm:"size:20;not null;default:'monthly'" json:"frequency"`

	NextDueDate       time.Time  `gorm:"type:date;not null;index" json:"next_due_date"`
	LastGeneratedDate *time.Time `gorm:"type:date" json:"last_generated_date,omitempty"`

	State             RecurringState `gorm:"size:20;default:'draft';index" json:"state"`
	LastStateChangeAt *time.Time     `json:"last_state_change_at,omitempty"`

	// IsActive mirrors State == active. It is written on every transition
	// and never toggled on its own.
	IsActive bool `gorm:"not null;default:false" json:"is_active"`

	Subtotal float64 `gorm:"not null;default:0" json:"subtotal"`
	Tax      float64 `gorm:"not null;default:0" json:"tax"`
	Total    float64 `gorm:"not null;default:0" json:"total"`

	Notes *string        `gorm:"type:text" json:"notes,omitempty"`
	Rules datatypes.JSON `json:"rules,omitempty"`

	Items []RecurringInvoiceItem `gorm:"foreignKey:RecurringInvoiceID" json:"items,omitempty"`
}

func (r *RecurringInvoice) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// GetAccountID implements the Owned interface.
func (r *RecurringInvoice) GetAccountID() string {
	return r.UserID
}

// RecurringInvoiceItem is a line copied onto every generated invoice.
type RecurringInvoiceItem struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RecurringInvoiceID string `gorm:"type:uuid;index;not null" json:"recurring_invoice_id"`

	Description string  `gorm:"not null" json:"description"`
	Quantity    float64 `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"not null;default:0" json:"unit_price"`
	Amount      float64 `json:"amount"`
	Position    int     `gorm:"default:0" json:"position"`
}

func (item *RecurringInvoiceItem) BeforeCreate(*gorm.DB) error {
	assignID(&item.ID)
	return nil
}

// RecurringInvoiceHistory records one state transition of a template.
type RecurringInvoiceHistory struct {
	ID                 string          `gorm:"type:uuid;primaryKey" json:"id"`
	RecurringInvoiceID string          `gorm:"type:uuid;index;not null" json:"recurring_invoice_id"`
	OldState           *RecurringState `gorm:"size:20" json:"old_state,omitempty"`
	NewState           *RecurringState `gorm:"size:20" json:"new_state,omitempty"`
	ChangedAt          time.Time       `gorm:"not null" json:"changed_at"`
	ChangedBy          *string         `gorm:"type:uuid" json:"changed_by,omitempty"`
}

func (RecurringInvoiceHistory) TableName() string { return "recurring_invoice_history" }

func (h *RecurringInvoiceHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
