package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply registry schema migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, sync, err := bootstrap()
		if err != nil {
			return err
		}
		defer sync()

		dbCfg, err := cfg.DatabaseConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := database.Open(ctx, dbCfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.NewMigrationService(logger, cfg.MigrationConfig()).Migrate(ctx, db)
	},
}
