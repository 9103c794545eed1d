package main

import (
	"os"

	"github.com/spf13/cobra"

	"twmarket/internal/app"
	"twmarket/internal/config"
)

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "twmarket",
		Short: "Taiwan market after-hours statistics and price monitors",
		Long: `twmarket collects the daily TWSE, TPEx and TAIFEX statistics into a
database, renders the after-hours workbook and serves the HTTP API with
realtime price alerts and conditional orders.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default config.yaml or configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newServeCommand(opts),
		newIngestCommand(opts),
		newReportCommand(opts),
		newListingCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig resolves configuration with the command line overrides applied
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv(config.EnvPrefix+"_CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// application loads configuration and builds the application container
func (o *rootOptions) application() (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
