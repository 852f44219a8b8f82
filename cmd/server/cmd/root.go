package cmd

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions carries the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	serve := newServeCmd(opts)

	root := &cobra.Command{
		Use:   "geowidget",
		Short: "Geowidget server - map coordinate picker with Nominatim geocoding",
		Long: `Geowidget serves entity forms with an interactive map widget for picking
a coordinate, backed by forward and reverse Nominatim geocoding.

The server supports:
- Map widgets bound to entity fields, one live session per rendered form
- Address search with suggestions and reverse lookup on click or drag
- Back-filling a postal address sub-form from the chosen place
- Per-widget settings administered through a validated form`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.RunE(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file overlaid on env vars (optional)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	// serve flags are also accepted on the bare root invocation
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newGeocodeCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHealthcheckCmd())
	root.AddCommand(newAdminCmd())
	return root
}

// Execute runs the command tree. It is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads env vars, overlays the --config file and applies the
// logging flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}
