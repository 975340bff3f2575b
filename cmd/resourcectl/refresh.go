package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/cdnhealth/internal/cdn"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <url>...",
		Short: "Ask the CDN to refresh the given URLs",
		Long: `Sends the URLs to the configured CDN provider. Without a configured
provider the refresh is skipped and reported as such.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, u := range args {
				if err := validation.ValidateResourceURL(u); err != nil {
					return err
				}
			}

			invalidator, err := cdn.NewFromConfig()
			if err != nil {
				return err
			}

			result := invalidator.Refresh(cmd.Context(), args)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("cdn refresh failed: %w", result.Err)
			}
			return nil
		},
	}
}
