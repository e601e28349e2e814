// Package app wires configuration into the running services shared by the
// HTTP server and the command-line tool.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/diewo77/billflow/internal/config"
	"github.com/diewo77/billflow/internal/db"
	"github.com/diewo77/billflow/internal/extraction"
	"github.com/diewo77/billflow/internal/handlers"
	"github.com/diewo77/billflow/internal/lock"
	"github.com/diewo77/billflow/internal/logger"
	"github.com/diewo77/billflow/internal/metrics"
	"github.com/diewo77/billflow/internal/reconcile"
	"github.com/diewo77/billflow/internal/services"
)

// Runtime holds the opened connections and the wired services.
type Runtime struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Router  *handlers.RouterConfig
}

// Setup loads configuration and initializes the global logger.
func Setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}); err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	return cfg, nil
}

// DBOptions maps configuration to connection options.
func DBOptions(cfg *config.Config) db.Options {
	return db.Options{
		DSN:           cfg.Database.ConnString(),
		Debug:         cfg.Database.Debug,
		SQLMigrations: cfg.App.Migrations,
		MigrationsDir: cfg.App.MigrationsDir,
	}
}

// ReconcileOptions maps configuration to matcher and run settings.
func ReconcileOptions(cfg *config.Config) services.ReconcileOptions {
	return services.ReconcileOptions{
		Matcher: reconcile.Config{
			AmountTolerance: cfg.Reconcile.AmountTolerance,
			DateTolerance:   time.Duration(cfg.Reconcile.DateToleranceDays) * 24 * time.Hour,
			MaxPairs:        cfg.Reconcile.MaxPairs,
		},
		Timeout: cfg.Reconcile.Timeout,
	}
}

// Open connects to the database (and Redis when configured) and builds
// every service.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	conn, err := db.Connect(ctx, DBOptions(cfg), logger.WithComponent("db"))
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, DB: conn, Metrics: metrics.New(nil)}

	opts := ReconcileOptions(cfg)
	opts.Metrics = rt.Metrics
	if cfg.Redis.Addr != "" {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts.Locker = lock.NewRedis(rt.Redis, "billflow:lock:", cfg.Redis.LockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("run locks backed by redis")
	}

	var extractor extraction.Extractor
	if e := extraction.NewOpenAI(extraction.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	}); e != nil {
		extractor = e
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, document text is stored without extraction")
	}

	rt.Router = handlers.NewRouterConfig(handlers.Deps{
		DB:        conn,
		Metrics:   rt.Metrics,
		Reconcile: opts,
		Extractor: extractor,
	})
	return rt, nil
}

// Close releases the database and Redis connections.
func (rt *Runtime) Close() {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
