package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/diewo77/billflow/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled billing jobs",
	Long: `Run reconciliation, recurring invoice generation and health refresh on
the cron schedules in RECONCILE_CRON, GENERATE_CRON and HEALTH_CRON until
interrupted. Metrics are served on --metrics-addr when set.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("metrics-addr", "", "Address to serve /metrics on (e.g. :9090)")
	workerCmd.Flags().Duration("job-timeout", 30*time.Minute, "Upper bound on a single job run")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	jobTimeout, _ := cmd.Flags().GetDuration("job-timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := worker.New(rt.Router.Reconciliation, rt.Router.Recurring, rt.Router.Health, jobTimeout)
	sched := rt.Config.Scheduler
	if err := w.Schedule(worker.Specs{
		Reconcile: sched.ReconcileSpec,
		Generate:  sched.GenerateSpec,
		Health:    sched.HealthSpec,
	}); err != nil {
		return err
	}

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", rt.Metrics.Handler())
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	w.Start()
	log.Info().Int("jobs", w.Entries()).Msg("worker started")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	w.Stop(shutdownCtx)
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("worker stopped")
	return nil
}
