// Package analytics computes the dashboard figures for an account:
// days sales outstanding, top clients, projected cash flow, payment
// methods and revenue by month. All functions are pure.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/billflow/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// TopClientsLimit is how many clients the revenue ranking returns.
	TopClientsLimit = 5
	// CashFlowHorizon is the look-ahead window for projected cash flow.
	CashFlowHorizon = 30 * 24 * time.Hour
)

// Payment pairs an invoice issue date with the date its bank deposit landed.
type Payment struct {
	IssueDate time.Time
	PaidDate  time.Time
}

// ClientRevenue is one row of the top-clients ranking.
type ClientRevenue struct {
	ClientID string  `json:"client_id"`
	Name     string  `json:"name"`
	Revenue  float64 `json:"revenue"`
}

// MethodCount counts deposits per inferred payment method.
type MethodCount struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
}

// MonthlyRevenue buckets invoice totals by issue month (YYYY-MM).
type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Pending float64 `json:"pending"`
	Overdue float64 `json:"overdue"`
}

// Summary is the full analytics payload for an account.
type Summary struct {
	DSO               int              `json:"dso"`
	TopClients        []ClientRevenue  `json:"top_clients"`
	ProjectedCashFlow float64          `json:"projected_cash_flow"`
	PaymentMethods    []MethodCount    `json:"payment_methods"`
	RevenueByMonth    []MonthlyRevenue `json:"revenue_by_month"`
}

// DSO returns the average number of whole days between issue and payment,
// ignoring same-day and negative spans. No qualifying payments yields 0.
func DSO(payments []Payment) int {
	var sum, n int
	for _, p := range payments {
		days := int(math.Floor(p.PaidDate.Sub(p.IssueDate).Hours() / 24))
		if days <= 0 {
			continue
		}
		sum += days
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// TopClients ranks clients by paid revenue, highest first, and returns at
// most limit rows. names maps client id to display name; missing names are
// reported as "Unknown".
func TopClients(invoices []models.Invoice, names map[string]string, limit int) []ClientRevenue {
	totals := make(map[string]decimal.Decimal)
	for i := range invoices {
		inv := &invoices[i]
		if inv.Status != models.InvoiceStatusPaid {
			continue
		}
		totals[inv.ClientID] = totals[inv.ClientID].Add(decimal.NewFromFloat(inv.Total))
	}

	rows := make([]ClientRevenue, 0, len(totals))
	for id, total := range totals {
		name, ok := names[id]
		if !ok {
			name = "Unknown"
		}
		revenue, _ := total.Float64()
		rows = append(rows, ClientRevenue{ClientID: id, Name: name, Revenue: revenue})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].ClientID < rows[j].ClientID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// ProjectedCashFlow sums sent invoices due within [now, now+horizon].
func ProjectedCashFlow(invoices []models.Invoice, now time.Time, horizon time.Duration) float64 {
	end := now.Add(horizon)
	sum := decimal.Zero
	for i := range invoices {
		inv := &invoices[i]
		if inv.Status != models.InvoiceStatusSent || inv.DueDate == nil {
			continue
		}
		if inv.DueDate.Before(now) || inv.DueDate.After(end) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(inv.Total))
	}
	f, _ := sum.Float64()
	return f
}

// PaymentMethods classifies bank transaction descriptions by keyword.
// The result is ordered by count, then method name.
func PaymentMethods(descriptions []string) []MethodCount {
	counts := make(map[string]int)
	for _, d := range descriptions {
		counts[classifyMethod(d)]++
	}

	out := make([]MethodCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, MethodCount{Method: m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func classifyMethod(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "ach"), strings.Contains(d, "direct deposit"):
		return "ACH"
	case strings.Contains(d, "credit"), strings.Contains(d, "visa"), strings.Contains(d, "mastercard"):
		return "Credit Card"
	case strings.Contains(d, "check"):
		return "Check"
	default:
		return "Other"
	}
}

// RevenueByMonth groups invoices by issue month. Paid totals count as
// revenue; sent and overdue totals count as pending, and also as overdue
// once their due date has passed.
func RevenueByMonth(invoices []models.Invoice, now time.Time) []MonthlyRevenue {
	type bucket struct{ revenue, pending, overdue decimal.Decimal }
	buckets := make(map[string]*bucket)

	for i := range invoices {
		inv := &invoices[i]
		month := inv.IssueDate.Format("2006-01")
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		total := decimal.NewFromFloat(inv.Total)
		switch inv.Status {
		case models.InvoiceStatusPaid:
			b.revenue = b.revenue.Add(total)
		case models.InvoiceStatusSent, models.InvoiceStatusOverdue:
			b.pending = b.pending.Add(total)
			if inv.DueDate != nil && inv.DueDate.Before(now) {
				b.overdue = b.overdue.Add(total)
			}
		}
	}

	out := make([]MonthlyRevenue, 0, len(buckets))
	for month, b := range buckets {
		row := MonthlyRevenue{Month: month}
		row.Revenue, _ = b.revenue.Float64()
		row.Pending, _ = b.pending.Float64()
		row.Overdue, _ = b.overdue.Float64()
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
