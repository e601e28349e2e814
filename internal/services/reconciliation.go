package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/lock"
	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/policy"
	"github.com/diewo77/billflow/internal/reconcile"
)

// errStale marks a match whose records changed between read and write.
var errStale = errors.New("match no longer applicable")

// ReconcileOptions configures a ReconciliationService.
type ReconcileOptions struct {
	Matcher reconcile.Config
	// Timeout bounds one account's run; 0 disables.
	Timeout time.Duration
	Locker  lock.Locker
	Metrics *metrics.Metrics
}

// ReconciliationService applies bank deposits to the invoices they pay.
type ReconciliationService struct {
	db      *gorm.DB
	matcher *reconcile.Matcher
	timeout time.Duration
	locker  lock.Locker
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewReconciliationService creates the service. A nil Locker disables run locking.
func NewReconciliationService(db *gorm.DB, opts ReconcileOptions) *ReconciliationService {
	locker := opts.Locker
	if locker == nil {
		locker = lock.Noop{}
	}
	return &ReconciliationService{
		db:      db,
		matcher: reconcile.NewMatcher(opts.Matcher),
		timeout: opts.Timeout,
		locker:  locker,
		metrics: opts.Metrics,
		log:     logger.WithComponent("reconcile"),
	}
}

// AppliedMatch describes one match written during a run.
type AppliedMatch struct {
	TransactionID string  `json:"transaction_id"`
	InvoiceID     string  `json:"invoice_id"`
	Amount        float64 `json:"amount"`
	AmountDiff    float64 `json:"amount_diff"`
	DateDiffDays  int     `json:"date_diff_days"`
	Confidence    float64 `json:"confidence"`
}

// RunResult summarizes one account's reconciliation run.
// Applied is the number of matches written.
type RunResult struct {
	AccountID  string         `json:"account_id"`
	Candidates int            `json:"candidates"`
	Applied    int            `json:"applied"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Matches    []AppliedMatch `json:"matches"`
}

// Run matches the account's pending transactions against its open invoices
// and applies every selected match.
//
// A read failure returns a DataAccessError before anything is written. Each
// match is then applied in its own transaction, guarded on the records'
// current status: a match whose transaction is no longer pending, or whose
// invoice is no longer open, is skipped; a match whose write fails is logged
// and counted, and the run moves on. If the run's deadline passes between
// matches, the partial result is returned with the context error.
func (s *ReconciliationService) Run(ctx context.Context, accountID string) (*RunResult, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := logger.WithAccount(s.log, accountID)

	release, ok, err := s.locker.Acquire(ctx, "reconcile:"+accountID)
	if err != nil {
		s.metrics.RecordReconcileRun("error", 0, 0, 0, time.Since(start))
		return nil, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		s.metrics.RecordReconcileRun("locked", 0, 0, 0, time.Since(start))
		return nil, apperr.ErrLocked
	}
	defer release()

	var txns []models.BankTransaction
	err = s.db.WithContext(ctx).
		Scopes(policy.AccountScope(accountID)).
		Where("status = ?", models.TransactionStatusPending).
		Order("date, id").
		Find(&txns).Error
	if err != nil {
		s.metrics.RecordReconcileRun("error", 0, 0, 0, time.Since(start))
		return nil, apperr.DataAccess("list pending transactions", err)
	}

	var invoices []models.Invoice
	err = s.db.WithContext(ctx).
		Scopes(policy.AccountScope(accountID)).
		Where("status IN ? AND due_date IS NOT NULL", models.OpenInvoiceStatuses).
		Order("due_date, id").
		Find(&invoices).Error
	if err != nil {
		s.metrics.RecordReconcileRun("error", 0, 0, 0, time.Since(start))
		return nil, apperr.DataAccess("list open invoices", err)
	}

	if s.matcher.Oversized(len(txns), len(invoices)) {
		log.Warn().
			Int("transactions", len(txns)).
			Int("invoices", len(invoices)).
			Msg("reconciliation volume exceeds pairwise scan bound")
	}

	candidates, err := s.matcher.FindCandidates(ctx, txns, invoices)
	if err != nil {
		s.metrics.RecordReconcileRun("error", 0, 0, 0, time.Since(start))
		return nil, err
	}
	selected := reconcile.SelectMatches(candidates)

	res := &RunResult{AccountID: accountID, Candidates: len(candidates), Matches: []AppliedMatch{}}
	var runErr error
	for _, c := range selected {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("reconcile interrupted after %d matches: %w", res.Applied, err)
			break
		}

		err := s.applyMatch(ctx, accountID, c)
		switch {
		case err == nil:
			res.Applied++
			res.Matches = append(res.Matches, AppliedMatch{
				TransactionID: c.Transaction.ID,
				InvoiceID:     c.Invoice.ID,
				Amount:        c.Transaction.Amount,
				AmountDiff:    c.AmountDiff,
				DateDiffDays:  int(c.DateDiff / (24 * time.Hour)),
				Confidence:    c.Confidence,
			})
		case errors.Is(err, errStale):
			res.Skipped++
			log.Info().
				Str("transaction_id", c.Transaction.ID).
				Str("invoice_id", c.Invoice.ID).
				Msg("match skipped, records changed since read")
		default:
			res.Failed++
			log.Error().Err(err).
				Str("transaction_id", c.Transaction.ID).
				Str("invoice_id", c.Invoice.ID).
				Msg("failed to apply match")
		}
	}

	result := "ok"
	if runErr != nil {
		result = "interrupted"
	}
	s.metrics.RecordReconcileRun(result, res.Applied, res.Skipped, res.Failed, time.Since(start))
	log.Info().
		Int("candidates", res.Candidates).
		Int("applied", res.Applied).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("reconciliation run complete")
	return res, runErr
}

// applyMatch marks the transaction matched and the invoice paid, atomically.
// Both updates are conditional on the pre-state the matcher saw.
func (s *ReconciliationService) applyMatch(ctx context.Context, accountID string, c reconcile.Candidate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&models.BankTransaction{}).
			Scopes(policy.AccountScope(accountID)).
			Where("id = ? AND status = ?", c.Transaction.ID, models.TransactionStatusPending).
			Updates(map[string]any{
				"status":             models.TransactionStatusMatched,
				"matched_invoice_id": c.Invoice.ID,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errStale
		}

		upd = tx.Model(&models.Invoice{}).
			Scopes(policy.AccountScope(accountID)).
			Where("id = ? AND status IN ?", c.Invoice.ID, models.OpenInvoiceStatuses).
			Update("status", models.InvoiceStatusPaid)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errStale
		}
		return nil
	})
}

// BatchResult summarizes a RunAll pass.
type BatchResult struct {
	Accounts int          `json:"accounts"`
	Locked   int          `json:"locked"`
	Failed   int          `json:"failed"`
	Results  []*RunResult `json:"results"`
}

// RunAll runs reconciliation for every account with pending transactions.
// One account's failure is logged and does not stop the others.
func (s *ReconciliationService) RunAll(ctx context.Context) (*BatchResult, error) {
	var accounts []string
	err := s.db.WithContext(ctx).
		Model(&models.BankTransaction{}).
		Where("status = ?", models.TransactionStatusPending).
		Distinct().
		Order("user_id").
		Pluck("user_id", &accounts).Error
	if err != nil {
		return nil, apperr.DataAccess("list accounts with pending transactions", err)
	}

	batch := &BatchResult{Accounts: len(accounts)}
	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		res, err := s.Run(ctx, accountID)
		if res != nil {
			batch.Results = append(batch.Results, res)
		}
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrLocked):
			batch.Locked++
			s.log.Info().Str("account_id", accountID).Msg("reconciliation already running, skipped")
		default:
			batch.Failed++
			s.log.Error().Err(err).Str("account_id", accountID).Msg("reconciliation run failed")
		}
	}
	return batch, nil
}
