package policy

import (
	"testing"

	"github.com/diewo77/billflow/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestOwns(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		resource  any
		want      bool
	}{
		{"owner", "acct-1", &models.Invoice{UserID: "acct-1"}, true},
		{"other account", "acct-2", &models.Invoice{UserID: "acct-1"}, false},
		{"client owner", "acct-1", &models.Client{UserID: "acct-1"}, true},
		{"nil resource", "acct-1", nil, false},
		{"empty account", "", &models.Invoice{}, false},
		{"not ownable", "acct-1", struct{ Name string }{"x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Owns(tt.accountID, tt.resource); got != tt.want {
				t.Errorf("Owns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccountScope(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.Client{}); err != nil {
		t.Fatal(err)
	}
	db.Create(&models.Client{UserID: "acct-1", Name: "Acme"})
	db.Create(&models.Client{UserID: "acct-1", Name: "Globex"})
	db.Create(&models.Client{UserID: "acct-2", Name: "Initech"})

	var clients []models.Client
	if err := db.Scopes(AccountScope("acct-1")).Find(&clients).Error; err != nil {
		t.Fatal(err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients for acct-1, got %d", len(clients))
	}
	for _, c := range clients {
		if c.UserID != "acct-1" {
			t.Errorf("leaked client from %s", c.UserID)
		}
	}
}
