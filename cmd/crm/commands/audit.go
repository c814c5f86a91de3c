package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuditCommand(version string) *cobra.Command {
	var (
		action string
		who    string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the audit trail",
		Example: `  crm audit --action instance.stop
  crm audit --actor cli --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var actionFilter, actorFilter *string
			if action != "" {
				actionFilter = &action
			}
			if who != "" {
				actorFilter = &who
			}

			entries, err := app.store.ListAuditEntries(ctx, actionFilter, actorFilter, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(entries)
			}
			for _, e := range entries {
				target := "-"
				if e.TargetID != nil {
					target = *e.TargetID
				}
				fmt.Printf("%s  %-20s %-10s %s\n",
					e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "filter by action (e.g. instance.start)")
	cmd.Flags().StringVar(&who, "actor", "", "filter by actor")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
