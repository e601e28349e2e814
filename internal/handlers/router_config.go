package handlers

import (
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/extraction"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/services"
)

// RouterConfig holds the configured handlers and the services behind them.
type RouterConfig struct {
	DB      *gorm.DB
	Metrics *metrics.Metrics

	ReconcileHandler  *ReconcileHandler
	RecurringHandler  *RecurringHandler
	HealthHandler     *HealthHandler
	AnalyticsHandler  *AnalyticsHandler
	ExtractionHandler *ExtractionHandler

	Reconciliation *services.ReconciliationService
	Recurring      *services.RecurringService
	Health         *services.HealthService
	Analytics      *services.AnalyticsService
	Extraction     *services.ExtractionService
}

// Deps are the collaborators NewRouterConfig wires the services with.
type Deps struct {
	DB        *gorm.DB
	Metrics   *metrics.Metrics
	Reconcile services.ReconcileOptions
	// Extractor may be nil, in which case document text is stored as-is.
	Extractor extraction.Extractor
}

// NewRouterConfig builds every service and its handler.
//
//	cfg := handlers.NewRouterConfig(handlers.Deps{DB: db, Metrics: m})
//	mux.HandleFunc("POST /reconcile", cfg.ReconcileHandler.Run)
func NewRouterConfig(d Deps) *RouterConfig {
	if d.Reconcile.Metrics == nil {
		d.Reconcile.Metrics = d.Metrics
	}
	reconciliation := services.NewReconciliationService(d.DB, d.Reconcile)
	recurring := services.NewRecurringService(d.DB, d.Metrics)
	health := services.NewHealthService(d.DB, d.Metrics)
	analytics := services.NewAnalyticsService(d.DB)
	extract := services.NewExtractionService(d.DB, d.Extractor, d.Metrics)

	return &RouterConfig{
		DB:                d.DB,
		Metrics:           d.Metrics,
		ReconcileHandler:  NewReconcileHandler(reconciliation),
		RecurringHandler:  NewRecurringHandler(recurring),
		HealthHandler:     NewHealthHandler(health),
		AnalyticsHandler:  NewAnalyticsHandler(analytics),
		ExtractionHandler: NewExtractionHandler(extract),
		Reconciliation:    reconciliation,
		Recurring:         recurring,
		Health:            health,
		Analytics:         analytics,
		Extraction:        extract,
	}
}
