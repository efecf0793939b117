package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gatepass/internal/database"
	"gatepass/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Get().Info("Migrations applied")
	return nil
}
