// Package db opens the PostgreSQL connection and brings the schema up to date.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diewo77/billflow/internal/models"
)

// Options controls Connect.
type Options struct {
	DSN           string
	Debug         bool
	Retries       int
	RetryInterval time.Duration
	// SQLMigrations applies MigrationsDir through golang-migrate instead of AutoMigrate.
	SQLMigrations bool
	MigrationsDir string
}

// requiredTables must exist once migrations have run.
var requiredTables = []string{"clients", "invoices", "bank_transactions", "recurring_invoices"}

// Connect opens the database with retries, pings it and migrates the schema.
func Connect(ctx context.Context, opts Options, log zerolog.Logger) (*gorm.DB, error) {
	dsn := NormalizeDSN(opts.DSN)
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}

	logLevel := gormlogger.Silent
	if opts.Debug {
		logLevel = gormlogger.Info
	}
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < opts.Retries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("retrying database connection")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if err := Ping(ctx, db); err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.Info().Str("dsn", MaskDSN(dsn)).Msg("database connected")

	if opts.SQLMigrations {
		if err := RunSQLMigrations(dsn, opts.MigrationsDir); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	if err := CheckSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Ping checks that the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates every table from the gorm models.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// CheckSchema verifies the core tables exist.
func CheckSchema(db *gorm.DB) error {
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the SQL files in dir with golang-migrate.
func RunSQLMigrations(dsn, dir string) error {
	if dir == "" {
		dir = "migrations"
	}
	m, err := migrate.New("file://"+dir, ToURLDSN(dsn))
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
