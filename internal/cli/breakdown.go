package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBreakdownCmd(a *app) *cobra.Command {
	var useContext, save bool
	cmd := &cobra.Command{
		Use:   "breakdown <goal>",
		Short: "Break a goal down into sub-tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")

			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Breakdown.Breakdown(cmd.Context(), goal, useContext)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.text() {
				for i, t := range res.Tasks {
					fmt.Fprintf(out, "%d. %s\n", i+1, t.Description)
				}
				if len(res.Tasks) == 0 {
					fmt.Fprintln(out, "No sub-tasks proposed.")
				}
			} else if err := printJSON(out, res); err != nil {
				return err
			}

			if !save || len(res.Tasks) == 0 {
				return nil
			}
			ing, err := svc.Breakdown.SaveBreakdown(cmd.Context(), goal, res.Tasks)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved breakdown: %s (%d tasks)\n", ing.Outcome, len(ing.Items))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&useContext, "context", "c", true, "Ground the breakdown on related past notes")
	cmd.Flags().BoolVarP(&save, "save", "s", false, "Store the proposed sub-tasks")
	return cmd
}
