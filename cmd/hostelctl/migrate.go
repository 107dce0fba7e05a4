package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/migrations"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
	"github.com/noah-isme/hostel-allocation-api/pkg/database"
)

var errMemoryStore = errors.New("migrate requires the postgres store driver")

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Store.Driver == config.StoreDriverMemory {
				return errMemoryStore
			}
			ctx := cmd.Context()
			db, err := database.NewPostgres(ctx, c.cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			names, err := migrations.Names()
			if err != nil {
				return err
			}
			applied, err := database.Migrate(ctx, db, migrations.Files, names)
			for _, name := range applied {
				c.logger.Info("migration applied", zap.String("name", name))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, map[string]interface{}{"applied": applied})
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			return nil
		},
	}
}
