package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProvidersCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage registered cloud providers",
	}

	cmd.AddCommand(newProvidersAddCommand(version))
	cmd.AddCommand(newProvidersListCommand(version))
	cmd.AddCommand(newProvidersTestCommand(version))
	cmd.AddCommand(newProvidersRemoveCommand(version))

	return cmd
}

func newProvidersAddCommand(version string) *cobra.Command {
	var (
		name            string
		providerType    string
		credentialsFile string
		regions         []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a cloud provider",
		Example: `  # Register an AWS account limited to two regions
  crm providers add --name prod-aws --type aws \
      --credentials-file aws-creds.json --region us-east-1 --region eu-west-1

  # Register a GCP project across all zones
  crm providers add --name lab-gcp --type gcp --credentials-file sa.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			credentials, err := os.ReadFile(credentialsFile)
			if err != nil {
				return fmt.Errorf("failed to read credentials file: %w", err)
			}

			provider, err := app.engine.RegisterProvider(ctx, name, providerType, credentials, regions, actor)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(provider)
			}
			fmt.Printf("Registered provider %s (%s) with id %s\n", provider.Name, provider.ProviderType, provider.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "unique provider name")
	cmd.Flags().StringVar(&providerType, "type", "", "provider type (aws, azure, gcp, openstack)")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "path to the credential JSON file")
	cmd.Flags().StringArrayVar(&regions, "region", nil, "region to sync (repeatable; omit for all regions)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("credentials-file")

	return cmd
}

func newProvidersListCommand(version string) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			providers, err := app.store.ListProviders(ctx, enabledOnly)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(providers)
			}
			for _, p := range providers {
				lastSync := "never"
				if p.LastSync != nil {
					lastSync = p.LastSync.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%s  %-10s %-20s enabled=%-5t last_sync=%s\n",
					p.ID, p.ProviderType, p.Name, p.Enabled, lastSync)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "show only enabled providers")
	return cmd
}

func newProvidersTestCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "test <provider>",
		Short: "Probe a provider's connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			provider, err := app.resolveProvider(ctx, args[0])
			if err != nil {
				return err
			}
			ok, err := app.engine.TestProvider(ctx, provider.ID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("provider %s is not reachable", provider.Name)
			}
			fmt.Printf("Provider %s is reachable\n", provider.Name)
			return nil
		},
	}
}

func newProvidersRemoveCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider>",
		Short: "Remove a provider and its synced instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			provider, err := app.resolveProvider(ctx, args[0])
			if err != nil {
				return err
			}
			if err := app.store.DeleteProvider(ctx, provider.ID); err != nil {
				return err
			}
			fmt.Printf("Removed provider %s\n", provider.Name)
			return nil
		},
	}
}
