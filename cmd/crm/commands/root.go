package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crm",
		Short: "Cloud Resource Manager - multi-cloud compute inventory and lifecycle",
		Long: `Cloud Resource Manager reconciles compute instances from AWS, Azure, GCP,
and OpenStack into a local SQLite inventory and drives lifecycle operations
through one provider-agnostic interface.

Features:
  - Canonical instance model across providers
  - Encrypted credential storage
  - Transactional reconciliation with sync run history
  - Start/stop/resize with bounded waits
  - Cost estimates and instance telemetry where the provider supports them`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newProvidersCommand(version))
	rootCmd.AddCommand(newSyncCommand(version))
	rootCmd.AddCommand(newInstancesCommand(version))
	rootCmd.AddCommand(newCostsCommand(version))
	rootCmd.AddCommand(newAuditCommand(version))

	return rootCmd
}
