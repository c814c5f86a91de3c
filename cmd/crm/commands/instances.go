package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInstancesCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Inspect and operate synced instances",
	}

	cmd.AddCommand(newInstancesListCommand(version))
	cmd.AddCommand(newInstancesStartCommand(version))
	cmd.AddCommand(newInstancesStopCommand(version))
	cmd.AddCommand(newInstancesResizeCommand(version))
	cmd.AddCommand(newInstancesRefreshCommand(version))
	cmd.AddCommand(newInstancesMetricsCommand(version))

	return cmd
}

func newInstancesListCommand(version string) *cobra.Command {
	var (
		providerRef string
		status      string
		limit       int
		offset      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List synced instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var providerID *string
			if providerRef != "" {
				provider, err := app.resolveProvider(ctx, providerRef)
				if err != nil {
					return err
				}
				providerID = &provider.ID
			}
			var statusFilter *string
			if status != "" {
				statusFilter = &status
			}

			records, err := app.store.ListInstances(ctx, providerID, statusFilter, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(records)
			}
			for _, r := range records {
				cost := "-"
				if r.MonthlyCost != nil {
					cost = fmt.Sprintf("$%.2f/mo", *r.MonthlyCost)
				}
				fmt.Printf("%s  %-10s %-25s %-15s %-12s %s\n",
					r.ID, r.Status, r.Name, r.InstanceType, r.Region, cost)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerRef, "provider", "", "filter by provider id or name")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (running, stopped, ...)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newInstancesStartCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "start <instance-id>",
		Short: "Start a stopped instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.engine.StartInstance(ctx, args[0], actor); err != nil {
				return err
			}
			fmt.Println("Instance started")
			return nil
		},
	}
}

func newInstancesStopCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <instance-id>",
		Short: "Stop a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.engine.StopInstance(ctx, args[0], actor); err != nil {
				return err
			}
			fmt.Println("Instance stopped")
			return nil
		},
	}
}

func newInstancesResizeCommand(version string) *cobra.Command {
	var newType string

	cmd := &cobra.Command{
		Use:   "resize <instance-id>",
		Short: "Change an instance's compute class",
		Example: `  crm instances resize 5f0c... --type t3.large`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.engine.ResizeInstance(ctx, args[0], newType, actor); err != nil {
				return err
			}
			fmt.Printf("Instance resized to %s\n", newType)
			return nil
		},
	}

	cmd.Flags().StringVar(&newType, "type", "", "target instance type or flavor")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newInstancesRefreshCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <instance-id>",
		Short: "Re-fetch one instance from its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.engine.RefreshInstance(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Instance refreshed")
			return nil
		},
	}
}

func newInstancesMetricsCommand(version string) *cobra.Command {
	var (
		metricType string
		hours      int
		period     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "metrics <instance-id>",
		Short: "Fetch instance telemetry samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			end := time.Now().UTC()
			start := end.Add(-time.Duration(hours) * time.Hour)

			points, err := app.engine.InstanceMetrics(ctx, args[0], metricType, start, end, period)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(points)
			}
			if len(points) == 0 {
				fmt.Println("No samples (provider may not support this metric)")
				return nil
			}
			for _, p := range points {
				fmt.Printf("%s  %.2f\n", p.Timestamp.Format(time.RFC3339), p.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricType, "metric", "cpu", "metric type (cpu, memory, disk_io, network_io)")
	cmd.Flags().IntVar(&hours, "hours", 24, "lookback window in hours")
	cmd.Flags().DurationVar(&period, "period", 5*time.Minute, "sample aggregation period")
	return cmd
}
