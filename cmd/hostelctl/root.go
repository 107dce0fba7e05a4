package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/app"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
	"github.com/noah-isme/hostel-allocation-api/pkg/logger"
)

// operator is the actor recorded in audit logs for CLI-driven changes.
var operator = &models.JWTClaims{UserID: "hostelctl", Role: models.RoleSuperAdmin}

type appOpener func(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts app.Options) (*app.App, error)

type cli struct {
	loadConfig func() (*config.Config, error)
	openApp    appOpener

	verbose bool
	asJSON  bool
	logger  *zap.Logger
	cfg     *config.Config
}

func newCLI() *cli {
	return &cli{loadConfig: config.Load, openApp: app.New}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "hostelctl",
		Short:        "Operate the hostel allocation engine",
		Long:         "hostelctl manages hostel rooms and allocations from the command line using the API configuration.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.logger = logger.NewCLI(c.verbose)
			if c.cfg != nil {
				return nil
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		c.migrateCmd(),
		c.importRosterCmd(),
		c.reconcileCmd(),
		c.resetCmd(),
		c.summaryCmd(),
		c.exportSheetCmd(),
		c.verifyCmd(),
		c.tokenCmd(),
	)
	return root
}

// open wires the services for a single command run.
func (c *cli) open(ctx context.Context, opts app.Options) (*app.App, error) {
	return c.openApp(ctx, c.cfg, c.logger, opts)
}

func (c *cli) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
