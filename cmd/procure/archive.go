package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/procure/internal/export"
	"github.com/dusk-indust/procure/internal/status"
)

func runsCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			arch, err := a.openArchive()
			if err != nil {
				return err
			}
			defer arch.Close()

			runs, err := arch.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return export.WriteJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs archived.")
				fmt.Fprintln(out, "Run 'procure run <intent>' to start one.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROJECT\tSTATE\tTOTAL\tDAYS\tSTARTED\tINTENT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t$%.2f\t%d\t%s\t%s\n",
					r.ID, r.ProjectID, r.State, r.TotalCostUSD, r.TotalDays,
					r.StartedAt.Local().Format(time.DateTime), r.Intent)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write runs as JSON")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <run-or-project-id>",
		Short: "Show phase progress of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := a.openArchive()
			if err != nil {
				return err
			}
			defer arch.Close()

			evs, err := arch.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rs := status.FromEvents(evs)
			out := cmd.OutOrStdout()
			if asJSON {
				return export.WriteJSON(out, rs)
			}
			fmt.Fprintf(out, "Run: %s\n\n", args[0])
			printRunStatus(out, rs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write status as JSON")
	return cmd
}

func diagramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram <run-or-project-id>",
		Short: "Print the supply chain of an archived run as a Mermaid graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := a.openArchive()
			if err != nil {
				return err
			}
			defer arch.Close()

			r, err := arch.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			plan, err := r.DecodePlan()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), export.Mermaid(*plan))
			return nil
		},
	}
}

func exportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <run-or-project-id>",
		Short: "Export an archived plan with its progress as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := a.openArchive()
			if err != nil {
				return err
			}
			defer arch.Close()

			ctx := cmd.Context()
			r, err := arch.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			plan, err := r.DecodePlan()
			if err != nil {
				return err
			}
			evs, err := arch.Events(ctx, r.ID)
			if err != nil {
				return err
			}
			data := export.ExportPlan(*plan, time.Now().UTC(), export.WithProgress(status.FromEvents(evs)))
			if err := export.WriteJSON(cmd.OutOrStdout(), data); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			return nil
		},
	}
}
