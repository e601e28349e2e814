package reconcile

import (
	"time"

	"github.com/diewo77/billflow/internal/models"
)

// DefaultConfidence is assigned to every candidate. Closeness is carried
// separately in AmountDiff and DateDiff.
const DefaultConfidence = 0.9

// Config holds matcher tolerances.
type Config struct {
	AmountTolerance float64       // strict upper bound on |amount - total| (default 0.01)
	DateTolerance   time.Duration // inclusive bound on |date - due date| (default 7 days)
	MaxPairs        int           // pair count above which a run is flagged as oversized; 0 disables
}

// DefaultConfig returns the production tolerances.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.01,
		DateTolerance:   7 * 24 * time.Hour,
		MaxPairs:        250000,
	}
}

// Candidate is a transaction/invoice pair that passed both tolerance tests.
type Candidate struct {
	Transaction *models.BankTransaction
	Invoice     *models.Invoice
	AmountDiff  float64
	DateDiff    time.Duration
	Confidence  float64
}
