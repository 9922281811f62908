package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgetplaner/internal/config"
	"budgetplaner/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Bring the SQLite schema up to date. The server migrates on startup as
well; this command lets operators migrate ahead of a deployment.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the applied schema version without migrating")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	if backend := viper.GetString("data_backend"); backend != config.BackendSQLite {
		return fmt.Errorf("migrations need the sqlite backend, not %q", backend)
	}
	dbPath := viper.GetString("sqlite_db_path")

	if !status {
		slog.Info("Running database migrations", "database", dbPath)
		if err := storage.RunMigrations(dbPath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d", version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
