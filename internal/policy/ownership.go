// Package policy holds the account-ownership rules every data access follows.
package policy

import (
	"github.com/diewo77/billflow/internal/models"
	"gorm.io/gorm"
)

// AccountScope restricts a query to rows owned by accountID.
//
//	db.Scopes(policy.AccountScope(accountID)).Find(&invoices)
func AccountScope(accountID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", accountID)
	}
}

// Owns reports whether the account owns the resource.
// Resources that do not implement models.Owned are denied by default.
func Owns(accountID string, resource any) bool {
	if accountID == "" || resource == nil {
		return false
	}
	owned, ok := resource.(models.Owned)
	if !ok {
		return false
	}
	return owned.GetAccountID() == accountID
}
