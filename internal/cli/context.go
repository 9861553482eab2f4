package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmaster-ai/taskmaster/internal/core"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage the notes used as breakdown context",
	}

	add := &cobra.Command{
		Use:   "add <file|->",
		Short: "Add a document to the context index without extracting tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, name, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			id, err := svc.Breakdown.AddContext(cmd.Context(), name, content)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"vector_id": id, "size": svc.Breakdown.ContextSize()})
		},
	}

	var k int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the notes closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			results := svc.Breakdown.SearchContext(cmd.Context(), strings.Join(args, " "), k)
			if !a.text() {
				return printJSON(cmd.OutOrStdout(), results)
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "--- %d ---\n%s\n", i+1, r)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&k, "limit", "k", core.NumRelevantChunks, "Number of results")

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the context index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset the context index without --yes")
			}
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.Breakdown.ResetContext()
		},
	}
	reset.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")

	cmd.AddCommand(add, search, reset)
	return cmd
}
