package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/registry"
	"github.com/jerkytreats/cdnhealth/internal/report"
	"github.com/jerkytreats/cdnhealth/internal/resourcelist"
	"github.com/jerkytreats/cdnhealth/internal/runner"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify every registered resource and print a health report",
		Long: `Lists the resource URLs from the API (or the local registry), probes them
for availability, consistency, cache headers, broken links and latency, and
prints a scored report. The JSON report is saved unless disabled.

The command exits 0 once a report has been produced, whatever the score.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noColor, _ := cmd.Flags().GetBool("no-color")
			noSave, _ := cmd.Flags().GetBool("no-save")
			fromRegistry, _ := cmd.Flags().GetBool("from-registry")

			var lister runner.Lister
			if fromRegistry {
				reg, err := registry.Open(config.GetString(registry.RegistryPathKey))
				if err != nil {
					return err
				}
				defer reg.Close()
				lister = reg
			} else {
				client, err := resourcelist.NewClientFromConfig()
				if err != nil {
					return err
				}
				lister = client
			}

			r, _, err := buildRunner(runnerSettings{
				lister:  lister,
				out:     cmd.OutOrStdout(),
				noColor: noColor || config.GetBool(report.ReportNoColorKey),
				save:    !noSave && config.GetBool(report.ReportSaveKey),
			})
			if err != nil {
				return err
			}

			if _, _, err := r.Run(cmd.Context()); err != nil {
				return fmt.Errorf("health check aborted: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().Bool("no-save", false, "Do not write the JSON report")
	cmd.Flags().Bool("from-registry", false, "Read resource URLs from the local registry instead of the API")
	return cmd
}
