package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/stores"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

func newRunsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored scan runs",
		Long:  `List, show and delete the scan runs kept in the run database by compute --save.`,
	}

	cmd.AddCommand(newRunsListCommand(a))
	cmd.AddCommand(newRunsShowCommand(a))
	cmd.AddCommand(newRunsDeleteCommand(a))

	return cmd
}

func newRunsListCommand(a *app) *cobra.Command {
	var (
		systemName string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Example: `  # Latest runs
  ttvdevil runs list

  # Failed runs of one system
  ttvdevil runs list --system koi-142 --status failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := stores.RunFilter{Limit: limit}
			if systemName != "" {
				filter.System = &systemName
			}
			if status != "" {
				s := stores.RunStatus(status)
				filter.Status = &s
			}
			runs, err := store.ListRuns(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if runs == nil {
					runs = []*stores.Run{}
				}
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSYSTEM\tSTATUS\tTRANSITS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.System, r.Status, r.TransitCount, r.StartedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&systemName, "system", "", "only runs of this system")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (running, completed, failed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	return cmd
}

// runDetail is the --json form of runs show.
type runDetail struct {
	*stores.Run
	Transits []*stores.Transit `json:"transits"`
	Events   []*stores.Event   `json:"events"`
}

func newRunsShowCommand(a *app) *cobra.Command {
	var body string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its transits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			var bodyFilter *string
			if body != "" {
				bodyFilter = &body
			}
			transits, err := store.ListTransits(ctx, run.ID, bodyFilter)
			if err != nil {
				return err
			}
			events, err := store.GetEvents(ctx, &run.ID, nil, 0, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, runDetail{Run: run, Transits: transits, Events: events})
			}
			printRun(out, run, transits, events)
			return nil
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "only transits of this body")

	return cmd
}

func printRun(w io.Writer, run *stores.Run, transits []*stores.Transit, events []*stores.Event) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "System:   %s (%s)\n", run.System, run.Source)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "Finished: %s (%s)\n", run.CompletedAt.Local().Format(time.DateTime),
			run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Options:  %s\n", run.Options)
	if run.Error != nil {
		fmt.Fprintf(w, "Error:    %s\n", *run.Error)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BODY\tEPOCH\tTIME (d)\tTTV (min)")
	for _, t := range transits {
		ttv := "-"
		if t.TTV != nil {
			ttv = fmt.Sprintf("%+.3f", *t.TTV/transit.Minute)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.6f\t%s\n", t.Body, t.Epoch, t.Time, ttv)
	}
	_ = tw.Flush()

	if len(events) > 0 {
		fmt.Fprintln(w)
		for _, e := range events {
			fmt.Fprintf(w, "[%s] %s\n", e.Level, e.Message)
		}
	}
}

func newRunsDeleteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <run-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a run with its transits and events",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", args[0])
			return nil
		},
	}

	return cmd
}
