package models

import (
	"time"

	"gorm.io/gorm"
)

// Client represents a customer of the account.
// Implements the Owned interface for account-scoped authorization.
type Client struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owning account (tenant boundary)
	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`

	// Client information
	Name         string  `gorm:"not null" json:"name"`
	Email        *string `json:"email,omitempty"`
	Company      *string `json:"company,omitempty"`
	Address      *string `json:"address,omitempty"`
	TaxID        *string `json:"tax_id,omitempty"`
	PaymentTerms *string `json:"payment_terms,omitempty"`

	// HealthScore caches the last computed wellness score (0-100)
	HealthScore *int `json:"health_score,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:ClientID" json:"invoices,omitempty"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// GetAccountID implements the Owned interface.
func (c *Client) GetAccountID() string {
	return c.UserID
}
