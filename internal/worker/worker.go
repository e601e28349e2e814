// Package worker runs the periodic billing jobs on cron schedules.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/services"
)

// Specs are the cron expressions for each job. An empty spec disables the job.
type Specs struct {
	Reconcile string
	Generate  string
	Health    string
}

// Worker schedules reconciliation, recurring generation and health refresh.
type Worker struct {
	cron      *cron.Cron
	reconcile *services.ReconciliationService
	recurring *services.RecurringService
	health    *services.HealthService
	timeout   time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a worker. Each job run is bounded by timeout when it is positive.
func New(
	reconcile *services.ReconciliationService,
	recurring *services.RecurringService,
	health *services.HealthService,
	timeout time.Duration,
) *Worker {
	return &Worker{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconcile: reconcile,
		recurring: recurring,
		health:    health,
		timeout:   timeout,
		log:       logger.WithComponent("worker"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schedule registers every job with a non-empty spec.
func (w *Worker) Schedule(specs Specs) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"reconcile", specs.Reconcile, w.RunReconcile},
		{"generate", specs.Generate, w.RunGenerate},
		{"health", specs.Health, w.RunHealth},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		job := j
		if _, err := w.cron.AddFunc(job.spec, func() { w.run(job.name, job.run) }); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", job.name, job.spec, err)
		}
		w.log.Info().Str("job", job.name).Str("spec", job.spec).Msg("job scheduled")
	}
	return nil
}

// Start runs the scheduler in the background.
func (w *Worker) Start() {
	w.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (w *Worker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.log.Warn().Msg("stopped before running jobs finished")
	}
}

// Entries returns the number of scheduled jobs.
func (w *Worker) Entries() int {
	return len(w.cron.Entries())
}

func (w *Worker) run(name string, fn func(context.Context) error) {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := fn(ctx); err != nil {
		w.log.Error().Err(err).Str("job", name).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}
	w.log.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
}

// RunReconcile reconciles every account with pending transactions.
func (w *Worker) RunReconcile(ctx context.Context) error {
	batch, err := w.reconcile.RunAll(ctx)
	if err != nil {
		return err
	}
	w.log.Info().Int("accounts", batch.Accounts).Int("locked", batch.Locked).Int("failed", batch.Failed).
		Msg("reconcile pass complete")
	return nil
}

// RunGenerate generates every recurring invoice due today.
func (w *Worker) RunGenerate(ctx context.Context) error {
	_, err := w.recurring.GenerateDue(ctx, w.now())
	return err
}

// RunHealth refreshes cached client health scores for every account.
func (w *Worker) RunHealth(ctx context.Context) error {
	n, err := w.health.RefreshAccounts(ctx)
	if err != nil {
		return err
	}
	w.log.Info().Int("clients", n).Msg("health refresh pass complete")
	return nil
}
