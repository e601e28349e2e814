// Package health scores how reliably a client pays.
//
// Calculate is a pure function of three numbers; Tally derives those numbers
// from an invoice history. Neither performs I/O.
package health

import (
	"math"
	"time"

	"github.com/diewo77/billflow/internal/models"
	"github.com/shopspring/decimal"
)

// Label is the five-tier reading of a score.
type Label string

const (
	LabelExcellent Label = "excellent"
	LabelGood      Label = "good"
	LabelFair      Label = "fair"
	LabelPoor      Label = "poor"
	LabelCritical  Label = "critical"
)

const (
	overduePenalty = 15
	overdueFloor   = 50
	ratioWeight    = 50
)

// Inputs are the aggregates a score is computed from.
type Inputs struct {
	OverdueCount  int     `json:"overdue_count"`
	TotalInvoiced float64 `json:"total_invoiced"`
	TotalPaid     float64 `json:"total_paid"`
}

// Score is a computed health score together with the inputs that produced it.
type Score struct {
	Value        int     `json:"score"`
	Label        Label   `json:"status"`
	PaymentRatio float64 `json:"payment_ratio"`
	Inputs
}

// Calculate maps an overdue count and invoiced/paid totals to a 0-100 score.
//
// Overdue invoices cost 15 points each but cannot take the score below 50 on
// their own. The unpaid share of invoiced revenue then costs up to 50 more.
// With nothing invoiced the payment ratio is 1.
func Calculate(overdueCount int, totalInvoiced, totalPaid float64) Score {
	score := 100 - overduePenalty*float64(overdueCount)
	if score < overdueFloor {
		score = overdueFloor
	}

	ratio := 1.0
	if totalInvoiced > 0 {
		ratio = totalPaid / totalInvoiced
	}
	score -= (1 - ratio) * ratioWeight

	score = math.Max(0, math.Min(100, score))
	value := int(math.Round(score))

	return Score{
		Value:        value,
		Label:        LabelFor(value),
		PaymentRatio: ratio,
		Inputs: Inputs{
			OverdueCount:  overdueCount,
			TotalInvoiced: totalInvoiced,
			TotalPaid:     totalPaid,
		},
	}
}

// CalculateInputs is Calculate over a tallied Inputs value.
func CalculateInputs(in Inputs) Score {
	return Calculate(in.OverdueCount, in.TotalInvoiced, in.TotalPaid)
}

// LabelFor returns the tier for a score.
func LabelFor(score int) Label {
	switch {
	case score >= 80:
		return LabelExcellent
	case score >= 60:
		return LabelGood
	case score >= 40:
		return LabelFair
	case score >= 20:
		return LabelPoor
	default:
		return LabelCritical
	}
}

// Tally aggregates an invoice history as of now. Every invoice counts toward
// TotalInvoiced; paid invoices count toward TotalPaid; an invoice is overdue
// when flagged so, or when sent with a due date strictly before now.
func Tally(invoices []models.Invoice, now time.Time) Inputs {
	var (
		overdue  int
		invoiced = decimal.Zero
		paid     = decimal.Zero
	)
	for i := range invoices {
		inv := &invoices[i]
		total := decimal.NewFromFloat(inv.Total)
		invoiced = invoiced.Add(total)
		if inv.Status == models.InvoiceStatusPaid {
			paid = paid.Add(total)
		}
		if inv.IsOverdueAt(now) {
			overdue++
		}
	}

	in := Inputs{OverdueCount: overdue}
	in.TotalInvoiced, _ = invoiced.Float64()
	in.TotalPaid, _ = paid.Float64()
	return in
}
