package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
)

func newSyncCommand(version string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sync [provider]",
		Short: "Reconcile provider inventories into the local store",
		Example: `  # Sync one provider by name
  crm sync prod-aws

  # Sync every enabled provider in parallel
  crm sync --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("specify either a provider or --all")
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var runs []*stores.SyncRun
			var syncErr error
			if all {
				runs, syncErr = app.engine.SyncAll(ctx)
			} else {
				provider, err := app.resolveProvider(ctx, args[0])
				if err != nil {
					return err
				}
				run, err := app.engine.Sync(ctx, provider.ID)
				if run != nil {
					runs = append(runs, run)
				}
				syncErr = err
			}

			if jsonOutput {
				if err := printJSON(runs); err != nil {
					return err
				}
			} else {
				for _, run := range runs {
					fmt.Printf("run %s provider=%s status=%s instances=%d\n",
						run.ID, run.ProviderID, run.Status, run.InstancesSynced)
				}
			}
			return syncErr
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "sync every enabled provider")
	return cmd
}
