package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/manifest"
	"github.com/Ramsey-B/fern/pkg/registry"
)

var applyCmd = &cobra.Command{
	Use:   "apply <manifest.yaml>",
	Short: "Create the projects declared in a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, sync, err := bootstrap()
		if err != nil {
			return err
		}
		defer sync()

		m, err := manifest.Load(args[0])
		if err != nil {
			return err
		}

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

		if err := database.NewMigrationService(logger, cfg.MigrationConfig()).Migrate(ctx, db); err != nil {
			return err
		}

		result, err := manifest.NewApplier(registry.NewService(db, logger), logger).Apply(ctx, m)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(result))
		for name := range result {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", result[name], name)
		}
		return nil
	},
}
