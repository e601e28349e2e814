// Package reconcile pairs pending bank deposits with the open invoices they settle.
//
// Matching is strict:
//   - Amount must match within the amount tolerance (exclusive, default 1 cent)
//   - Transaction date must be within the date tolerance of the invoice due date (inclusive, default 7 days)
//   - Each transaction and each invoice takes part in at most one selected match per run
//
// The scan is pairwise, O(transactions × invoices). That is fine for per-account
// volumes; Config.MaxPairs lets callers flag runs that outgrow it.
//
// Example usage:
//
//	m := reconcile.NewMatcher(reconcile.DefaultConfig())
//	candidates, err := m.FindCandidates(ctx, txns, invoices)
//	matches := reconcile.SelectMatches(candidates)
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/diewo77/billflow/internal/models"
	"github.com/shopspring/decimal"
)

// Matcher finds candidate matches between transactions and invoices.
type Matcher struct {
	config    Config
	tolerance decimal.Decimal
}

// NewMatcher creates a new matcher with the given config.
func NewMatcher(config Config) *Matcher {
	return &Matcher{
		config:    config,
		tolerance: decimal.NewFromFloat(config.AmountTolerance),
	}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Oversized reports whether a scan of this size exceeds the configured comfort bound.
func (m *Matcher) Oversized(txns, invoices int) bool {
	return m.config.MaxPairs > 0 && txns*invoices > m.config.MaxPairs
}

// FindCandidates returns every pair passing the amount and date tests, in scan order.
// Only pending transactions and open invoices with a due date are considered.
// The context is checked once per transaction.
func (m *Matcher) FindCandidates(
	ctx context.Context,
	transactions []models.BankTransaction,
	invoices []models.Invoice,
) ([]Candidate, error) {
	var candidates []Candidate

	for ti := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tx := &transactions[ti]
		if tx.Status != models.TransactionStatusPending {
			continue
		}
		txAmount := decimal.NewFromFloat(tx.Amount)

		for ii := range invoices {
			inv := &invoices[ii]
			if !inv.IsOpen() || inv.DueDate == nil {
				continue
			}

			amountDiff := txAmount.Sub(decimal.NewFromFloat(inv.Total)).Abs()
			if !amountDiff.LessThan(m.tolerance) {
				continue
			}

			dateDiff := absDuration(tx.Date.Sub(*inv.DueDate))
			if dateDiff > m.config.DateTolerance {
				continue
			}

			diff, _ := amountDiff.Float64()
			candidates = append(candidates, Candidate{
				Transaction: tx,
				Invoice:     inv,
				AmountDiff:  diff,
				DateDiff:    dateDiff,
				Confidence:  DefaultConfidence,
			})
		}
	}

	return candidates, nil
}

// SelectMatches resolves conflicts so that each transaction and each invoice
// appears in at most one match. Candidates are ranked by smallest amount
// difference, then smallest date difference; remaining ties fall back to the
// earlier transaction, then ids, so the outcome does not depend on input order.
func SelectMatches(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.AmountDiff != b.AmountDiff {
			return a.AmountDiff < b.AmountDiff
		}
		if a.DateDiff != b.DateDiff {
			return a.DateDiff < b.DateDiff
		}
		if !a.Transaction.Date.Equal(b.Transaction.Date) {
			return a.Transaction.Date.Before(b.Transaction.Date)
		}
		if a.Transaction.ID != b.Transaction.ID {
			return a.Transaction.ID < b.Transaction.ID
		}
		return a.Invoice.ID < b.Invoice.ID
	})

	usedTx := make(map[string]bool)
	usedInv := make(map[string]bool)
	selected := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if usedTx[c.Transaction.ID] || usedInv[c.Invoice.ID] {
			continue
		}
		usedTx[c.Transaction.ID] = true
		usedInv[c.Invoice.ID] = true
		selected = append(selected, c)
	}
	return selected
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
