package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/api/internal/config"
	"taskboard/api/internal/store"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Taskboard API server and maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file applied before reading the environment")

	load := func() (config.Config, *logrus.Logger, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return config.Config{}, nil, err
		}
		return cfg, cfg.NewLogger(), nil
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	return cmd
}

type loader func() (config.Config, *logrus.Logger, error)

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}
