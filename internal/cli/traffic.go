package cli

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"netinventory/internal/codec"
	"netinventory/internal/service"
)

func newTrafficCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Record and rank endpoint traffic",
	}

	var up, down float64
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add upload and download megabytes to an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.RecordTraffic(cmd.Context(), args[0], up, down)
			if err != nil {
				return err
			}
			printf(cmd, "%s total=%.2fMB\n", rec.Name, rec.TrafficUpMB+rec.TrafficDownMB)
			return nil
		},
	}
	add.Flags().Float64Var(&up, "up", 0, "upload megabytes")
	add.Flags().Float64Var(&down, "down", 0, "download megabytes")

	var n int
	top := &cobra.Command{
		Use:   "top",
		Short: "Show the endpoints with the most traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderEndpoints(cmd, a.svc.TopConsumers(n))
			return nil
		},
	}
	top.Flags().IntVarP(&n, "number", "n", 5, "how many endpoints to show")

	cmd.AddCommand(add, top)
	return cmd
}

func renderEndpoints(cmd *cobra.Command, endpoints []codec.Record) {
	if len(endpoints) == 0 {
		printf(cmd, "no endpoints\n")
		return
	}
	table := tablewriter.NewWriter(out(cmd))
	table.SetHeader([]string{"Name", "User", "Status", "Up MB", "Down MB", "Total MB", "Suspended Until"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, rec := range endpoints {
		table.Append([]string{
			rec.Name, rec.UserID, rec.Status,
			fmt.Sprintf("%.2f", rec.TrafficUpMB),
			fmt.Sprintf("%.2f", rec.TrafficDownMB),
			fmt.Sprintf("%.2f", rec.TrafficUpMB+rec.TrafficDownMB),
			suspendedUntil(rec),
		})
	}
	table.Render()
}

// suspendedUntil formats a record's expiry for tables, or "-" when unset
func suspendedUntil(rec codec.Record) string {
	if rec.SuspendedUntil == nil {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, *rec.SuspendedUntil)
	if err != nil {
		return *rec.SuspendedUntil
	}
	return t.Format("2006-01-02 15:04:05")
}

func newSuspendCommand(a *app) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "suspend NAME",
		Short: "Suspend an endpoint, replacing any current suspension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.Suspend(cmd.Context(), args[0], minutes)
			if err != nil {
				return err
			}
			printf(cmd, "%s suspended until %s\n", rec.Name, suspendedUntil(rec))
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "suspension length in minutes")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newPolicyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Traffic cap policy",
	}

	var (
		limit   float64
		minutes int
	)
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Suspend every active endpoint over the traffic limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req service.PolicyRequest
			if cmd.Flags().Changed("limit-mb") {
				req.LimitMB = &limit
			}
			if cmd.Flags().Changed("minutes") {
				if minutes <= 0 {
					return errUsage("--minutes must be positive, got %d", minutes)
				}
				req.SuspendMinutes = minutes
			}
			run := req.Run(a.svc.Policy())

			affected, err := a.svc.ApplyPolicy(cmd.Context(), run)
			if err != nil {
				return err
			}
			printf(cmd, "limit %.2fMB, %d minutes: %d endpoint(s) suspended\n", run.LimitMB, run.SuspendMinutes, len(affected))
			if len(affected) > 0 {
				renderEndpoints(cmd, affected)
			}
			return nil
		},
	}
	apply.Flags().Float64Var(&limit, "limit-mb", 0, "traffic limit in MB (default from config)")
	apply.Flags().IntVar(&minutes, "minutes", 0, "suspension length (default from config)")

	cmd.AddCommand(apply)
	return cmd
}
