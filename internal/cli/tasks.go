package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and prioritize stored tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			items, err := svc.Tasks.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			if !a.text() {
				return printJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tPRIORITY\tTASK")
			for _, item := range items {
				due := "-"
				if item.Task.DueDate != nil {
					due = *item.Task.DueDate
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.Task.Status, due, item.Task.Priority, item.Task.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			stats, err := svc.Tasks.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d tasks from %d sources\n", stats.Tasks, stats.Sources)
			return nil
		},
	}

	sources := &cobra.Command{
		Use:   "sources",
		Short: "List ingested source documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			docs, err := svc.Tasks.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			if !a.text() {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROCESSED\tSOURCE")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.ProcessedAt.Format(time.DateTime), d.SourceName)
			}
			return tw.Flush()
		},
	}

	prioritize := &cobra.Command{
		Use:   "prioritize",
		Short: "Ask the model which open tasks to do first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.Tasks.Prioritize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored task and source document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop all tasks without --yes")
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.Tasks.Reset(cmd.Context())
		},
	}
	reset.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")

	cmd.AddCommand(list, sources, prioritize, reset)
	return cmd
}
