package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/diewo77/billflow/internal/app"
	"github.com/diewo77/billflow/internal/db"
	"github.com/diewo77/billflow/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Long: `Bring the database schema up to date, either from the gorm models or, with
--sql (or MIGRATIONS=true), from the SQL files in the migrations directory.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("sql", false, "Apply SQL migrations instead of AutoMigrate")
	migrateCmd.Flags().String("dir", "", "SQL migrations directory (default: MIGRATIONS_DIR)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := app.Setup()
	if err != nil {
		return err
	}
	opts := app.DBOptions(cfg)
	if useSQL, _ := cmd.Flags().GetBool("sql"); useSQL {
		opts.SQLMigrations = true
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		opts.MigrationsDir = dir
	}

	conn, err := db.Connect(cmd.Context(), opts, logger.WithComponent("migrate"))
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info().Bool("sql", opts.SQLMigrations).Msg("migrations completed successfully")
	return nil
}
