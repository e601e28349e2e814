package models

import "github.com/google/uuid"

// Owned is implemented by every record scoped to an account.
type Owned interface {
	GetAccountID() string
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Client{},
		&Invoice{},
		&LineItem{},
		&BankTransaction{},
		&RecurringInvoice{},
		&RecurringInvoiceItem{},
		&RecurringInvoiceHistory{},
		&UploadedFile{},
		&AIExtraction{},
	}
}
