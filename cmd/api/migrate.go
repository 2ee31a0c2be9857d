package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/congo-pay/phoneauth/internal/config"
	"github.com/congo-pay/phoneauth/internal/infra"
	"github.com/congo-pay/phoneauth/internal/logging"
	"github.com/congo-pay/phoneauth/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the accounts and wallets tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required to migrate")
		}
		logger := logging.New(cfg.LogLevel, cfg.AppName)

		db, err := infra.OpenSQL(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := migrations.Apply(cmd.Context(), db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	},
}
