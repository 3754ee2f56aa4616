package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens-backend/internal/database"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the storage schema",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == database.DriverMemory {
				return fmt.Errorf("storage driver is %q; nothing to migrate", cfg.Storage.Driver)
			}

			db, err := database.NewConnection(cfg.Storage)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			if err := database.RunMigrations(db, cfg.Storage); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", cfg.Storage.Driver)
			return nil
		},
	})

	dbCmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration (postgres only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := database.RollbackMigration(cfg.Storage); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration")
			return nil
		},
	})

	return dbCmd
}
