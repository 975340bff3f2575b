package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
)

func init() {
	config.RegisterRequiredKey(config.APIBaseURLKey)
	config.RegisterRequiredKey(persistence.ReportDirKey)
}

// NewRootCmd builds the resourcectl command tree. Without a subcommand it
// runs a health check.
func NewRootCmd() *cobra.Command {
	var configFile string

	check := newCheckCmd()

	cmd := &cobra.Command{
		Use:   "resourcectl",
		Short: "Store static resources and verify their CDN health",
		Long: `resourcectl uploads static assets to object storage, refreshes them on the CDN,
and verifies that every registered resource is served correctly.

Configuration comes from an optional YAML file and from environment variables
(API_BASE_URL, CDN_BASE_URL, PROBE_TIMEOUT, ...).`,
		Example: `  API_BASE_URL=http://localhost:3000 resourcectl
  resourcectl upload banner.png --type images --category banners
  resourcectl serve`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.FirstTimeInit(configFile); err != nil {
				return err
			}
			logging.Configure(logging.Options{
				Level: config.GetString(config.LogLevelKey),
				JSON:  config.GetBool(config.LogJSONKey),
			})
			return nil
		},
		RunE:          check.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the configuration file")
	cmd.Flags().AddFlagSet(check.Flags())

	cmd.AddCommand(
		check,
		newUploadCmd(),
		newRefreshCmd(),
		newDeleteCmd(),
		newServeCmd(),
	)
	return cmd
}

// Execute runs the root command until it returns or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
