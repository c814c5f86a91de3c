package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

func newCostsCommand(version string) *cobra.Command {
	var (
		start       string
		end         string
		granularity string
	)

	cmd := &cobra.Command{
		Use:   "costs <provider>",
		Short: "Fetch a provider's spend summary",
		Example: `  crm costs prod-aws --start 2026-07-01 --end 2026-08-01
  crm costs prod-aws --granularity MONTHLY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			endTime := time.Now().UTC()
			startTime := endTime.AddDate(0, -1, 0)
			if start != "" {
				if startTime, err = time.Parse("2006-01-02", start); err != nil {
					return fmt.Errorf("invalid --start date: %w", err)
				}
			}
			if end != "" {
				if endTime, err = time.Parse("2006-01-02", end); err != nil {
					return fmt.Errorf("invalid --end date: %w", err)
				}
			}

			var gran cloud.Granularity
			switch granularity {
			case "DAILY", "daily":
				gran = cloud.GranularityDaily
			case "MONTHLY", "monthly":
				gran = cloud.GranularityMonthly
			default:
				return fmt.Errorf("invalid granularity %q, expected DAILY or MONTHLY", granularity)
			}

			provider, err := app.resolveProvider(ctx, args[0])
			if err != nil {
				return err
			}
			summary, err := app.engine.ProviderCosts(ctx, provider.ID, startTime, endTime, gran)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(summary)
			}
			fmt.Printf("Total: %.2f %s\n", summary.TotalCost, summary.Currency)
			for service, cost := range summary.ByService {
				fmt.Printf("  %-30s %.2f\n", service, cost)
			}
			if summary.Note != "" {
				fmt.Printf("Note: %s\n", summary.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "period start (YYYY-MM-DD, default one month ago)")
	cmd.Flags().StringVar(&end, "end", "", "period end (YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&granularity, "granularity", "DAILY", "aggregation window (DAILY, MONTHLY)")
	return cmd
}
