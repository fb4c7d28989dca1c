package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parcelworks/courier"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply job store schema migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := courier.FromEnv()
	if err != nil {
		return err
	}

	store, err := openStore(cmd, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
