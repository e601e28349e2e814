package main

import (
	"net/http"

	"github.com/diewo77/billflow/internal/auth"
	"github.com/diewo77/billflow/internal/handlers"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	handler   http.Handler
	sessions  *auth.Sessions
	routerCfg *handlers.RouterConfig
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *handlers.RouterConfig, sessionSecret string, verifier auth.AccountVerifier) *App {
	app := &App{
		mux:       http.NewServeMux(),
		sessions:  auth.NewSessions(sessionSecret, verifier),
		routerCfg: routerCfg,
	}
	app.setupRoutes()
	// metrics wraps the mux directly so it sees the Pattern the mux sets
	app.handler = app.sessions.Middleware(routerCfg.Metrics.Middleware(app.mux))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /healthz", handlers.Healthz(a.routerCfg.DB))
	a.mux.Handle("GET /metrics", a.routerCfg.Metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Account routes (require a signed session)
	// ─────────────────────────────────────────────────────────────────────────
	rh := a.routerCfg.ReconcileHandler
	a.mux.Handle("POST /reconcile", a.requireAuth(rh.Run))

	ri := a.routerCfg.RecurringHandler
	a.mux.Handle("GET /recurring", a.requireAuth(ri.List))
	a.mux.Handle("POST /recurring", a.requireAuth(ri.Create))
	a.mux.Handle("GET /recurring/{id}", a.requireAuth(ri.View))
	a.mux.Handle("GET /recurring/{id}/history", a.requireAuth(ri.History))
	a.mux.Handle("POST /recurring/{id}/state", a.requireAuth(ri.SetState))
	a.mux.Handle("POST /recurring/{id}/generate", a.requireAuth(ri.Generate))
	a.mux.Handle("POST /recurring/{id}/delete", a.requireAuth(ri.Delete))

	hh := a.routerCfg.HealthHandler
	a.mux.Handle("GET /clients/{id}/health", a.requireAuth(hh.Client))
	a.mux.Handle("POST /clients/{id}/health/refresh", a.requireAuth(hh.Refresh))
	a.mux.Handle("POST /clients/health/refresh", a.requireAuth(hh.RefreshAll))
	a.mux.Handle("GET /health-score", a.requireAuth(hh.Account))

	a.mux.Handle("GET /analytics", a.requireAuth(a.routerCfg.AnalyticsHandler.Summary))

	a.mux.Handle("POST /files/{id}/extract", a.requireAuth(a.routerCfg.ExtractionHandler.Extract))
}

// requireAuth wraps a handler to require a signed-in account.
func (a *App) requireAuth(next http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(next)
}
