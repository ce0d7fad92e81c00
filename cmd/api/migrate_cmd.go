package main

import (
	"github.com/spf13/cobra"

	"taskboard/api/internal/store"
)

func newMigrateCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(apply func(*cobra.Command, *store.PostgresStore) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			store.SetMigrationLogger(logger)
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return apply(cmd, store.NewPostgresStore(db))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: run(func(cmd *cobra.Command, s *store.PostgresStore) error {
			return store.ApplyMigrations(cmd.Context(), s.DB())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: run(func(cmd *cobra.Command, s *store.PostgresStore) error {
			return store.RollbackMigration(cmd.Context(), s.DB())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: run(func(cmd *cobra.Command, s *store.PostgresStore) error {
			return store.MigrationStatus(cmd.Context(), s.DB())
		}),
	})
	return cmd
}
