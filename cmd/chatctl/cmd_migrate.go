package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jan-server/services/support-chat-api/internal/infrastructure"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Create the database if needed and apply all pending schema migrations.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, closeDB, err := infrastructure.ProvideGormDB(cmd.Context(), infrastructure.ProvideDatabaseConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer closeDB()

	fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.DatabaseDriver)
	return nil
}
