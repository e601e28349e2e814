package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/analytics"
	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/policy"
)

// AnalyticsService assembles the dashboard summary for an account.
type AnalyticsService struct {
	db *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

type paymentRow struct {
	IssueDate time.Time
	PaidDate  time.Time
}

// Summary computes every dashboard figure as of now.
func (s *AnalyticsService) Summary(ctx context.Context, accountID string, now time.Time) (*analytics.Summary, error) {
	db := s.db.WithContext(ctx)

	var rows []paymentRow
	err := db.Table("bank_transactions AS t").
		Select("i.issue_date AS issue_date, t.date AS paid_date").
		Joins("JOIN invoices AS i ON i.id = t.matched_invoice_id").
		Where("t.user_id = ? AND i.status = ?", accountID, models.InvoiceStatusPaid).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DataAccess("list matched payments", err)
	}
	payments := make([]analytics.Payment, len(rows))
	for i, r := range rows {
		payments[i] = analytics.Payment{IssueDate: r.IssueDate, PaidDate: r.PaidDate}
	}

	var invoices []models.Invoice
	err = db.Scopes(policy.AccountScope(accountID)).
		Select("id", "client_id", "status", "issue_date", "due_date", "total").
		Find(&invoices).Error
	if err != nil {
		return nil, apperr.DataAccess("list invoices", err)
	}

	var clients []models.Client
	err = db.Scopes(policy.AccountScope(accountID)).Select("id", "name").Find(&clients).Error
	if err != nil {
		return nil, apperr.DataAccess("list clients", err)
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	var descriptions []string
	err = db.Model(&models.BankTransaction{}).
		Scopes(policy.AccountScope(accountID)).
		Where("description IS NOT NULL").
		Pluck("description", &descriptions).Error
	if err != nil {
		return nil, apperr.DataAccess("list transaction descriptions", err)
	}

	return &analytics.Summary{
		DSO:               analytics.DSO(payments),
		TopClients:        analytics.TopClients(invoices, names, analytics.TopClientsLimit),
		ProjectedCashFlow: analytics.ProjectedCashFlow(invoices, now, analytics.CashFlowHorizon),
		PaymentMethods:    analytics.PaymentMethods(descriptions),
		RevenueByMonth:    analytics.RevenueByMonth(invoices, now),
	}, nil
}
